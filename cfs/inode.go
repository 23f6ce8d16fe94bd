// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/pnasrat/brisk"
)

// sentinelValue marks a row as a live path index entry. Every inode
// row carries it so one indexed EQ clause covers the whole index.
const sentinelValue = "x"

// PathLog is the format for path args in logs
const PathLog = "Path: %s"

// PathKeyLog is the format for path and row key args in logs
const PathKeyLog = "Path: %s Key: %s"

func checkPath(path string) error {
	if path == "" || path[0] != '/' {
		return brisk.NewError(brisk.ErrBadArguments,
			"path %q is not absolute", path)
	}
	return nil
}

// StoreInodeLog can be used in external tool for log parsing
const StoreInodeLog = "Cfs::StoreInode"

// GoCqlStoreInodeLog can be used in external tool for log parsing
const GoCqlStoreInodeLog = "GoCql::StoreInode"

// StoreInode writes the inode for path, replacing whatever inode the
// path held before. The payload and its path index columns go out in
// one unlogged batch at a single client chosen timestamp, so a reader
// never sees the index entry and the payload from different writes.
func (s *Store) StoreInode(c ctx, path string, inode *brisk.Inode) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if inode == nil {
		return brisk.NewError(brisk.ErrBadArguments, "inode is nil")
	}

	key := pathKey(path)
	defer c.FuncIn(StoreInodeLog, PathKeyLog, path, key).Out()

	data := inode.Serialize()
	ts := time.Now().UnixMicro()
	queryStr := fmt.Sprintf(`BEGIN UNLOGGED BATCH USING TIMESTAMP %d
INSERT INTO %s.%s (key, path) VALUES (?, ?);
INSERT INTO %s.%s (key, sentinel) VALUES (?, ?);
INSERT INTO %s.%s (key, data) VALUES (?, ?);
APPLY BATCH;`, ts, s.keyspace, inodeTable, s.keyspace, inodeTable,
		s.keyspace, inodeTable)
	query := s.session.Query(queryStr,
		key, path, key, sentinelValue, key, data).
		Consistency(s.policy.Write)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.insertStats.RecordOp(time.Since(start)) }()

	var err error
	func() {
		defer c.FuncIn(GoCqlStoreInodeLog, PathKeyLog, path, key).Out()
		err = query.Exec()
	}()
	if err != nil {
		return brisk.NewError(brisk.ErrOperationFailed,
			"error in StoreInode[%s] %s", path, err.Error())
	}
	return nil
}

// RetrieveInodeLog can be used in external tool for log parsing
const RetrieveInodeLog = "Cfs::RetrieveInode"

// GoCqlRetrieveInodeLog can be used in external tool for log parsing
const GoCqlRetrieveInodeLog = "GoCql::RetrieveInode"

// RetrieveInode reads the inode stored for path. An absent path is not
// an error, it returns (nil, nil). WriteTime on the result carries the
// store's write timestamp in microseconds.
func (s *Store) RetrieveInode(c ctx, path string) (*brisk.Inode, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	key := pathKey(path)
	defer c.FuncIn(RetrieveInodeLog, PathKeyLog, path, key).Out()

	var data []byte
	var writeTime int64
	queryStr := fmt.Sprintf(`SELECT data, WRITETIME(data)
FROM %s.%s
WHERE key = ?`, s.keyspace, inodeTable)
	query := s.session.Query(queryStr, key).Consistency(s.policy.Read)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.getStats.RecordOp(time.Since(start)) }()

	var err error
	func() {
		defer c.FuncIn(GoCqlRetrieveInodeLog, PathKeyLog, path, key).Out()
		err = query.Scan(&data, &writeTime)
	}()
	if err != nil {
		if err == gocql.ErrNotFound {
			c.Vlog(RetrieveInodeLog+" absent "+PathLog, path)
			return nil, nil
		}
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error in RetrieveInode[%s] %s", path, err.Error())
	}

	inode, derr := brisk.DeserializeInode(data)
	if derr != nil {
		return nil, derr
	}
	inode.WriteTime = writeTime
	return inode, nil
}

// DeleteInodeLog can be used in external tool for log parsing
const DeleteInodeLog = "Cfs::DeleteInode"

// GoCqlDeleteInodeLog can be used in external tool for log parsing
const GoCqlDeleteInodeLog = "GoCql::DeleteInode"

// DeleteInode removes the inode row for path, index entry included.
// The delete is a tombstone at a client chosen timestamp; readers at
// weaker consistency can keep seeing the inode for a while.
func (s *Store) DeleteInode(c ctx, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}

	key := pathKey(path)
	defer c.FuncIn(DeleteInodeLog, PathKeyLog, path, key).Out()

	ts := time.Now().UnixMicro()
	queryStr := fmt.Sprintf(`DELETE
FROM %s.%s
USING TIMESTAMP %d
WHERE key = ?`, s.keyspace, inodeTable, ts)
	query := s.session.Query(queryStr, key).Consistency(s.policy.Write)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.deleteStats.RecordOp(time.Since(start)) }()

	var err error
	func() {
		defer c.FuncIn(GoCqlDeleteInodeLog, PathKeyLog, path, key).Out()
		err = query.Exec()
	}()
	if err != nil {
		return brisk.NewError(brisk.ErrOperationFailed,
			"error in DeleteInode[%s] %s", path, err.Error())
	}
	return nil
}
