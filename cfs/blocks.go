// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/pnasrat/brisk"
)

// BlockKeyLog is the format for block key args in logs
const BlockKeyLog = "Block: %s"

// StoreBlockLog can be used in external tool for log parsing
const StoreBlockLog = "Cfs::StoreBlock"

// GoCqlStoreBlockLog can be used in external tool for log parsing
const GoCqlStoreBlockLog = "GoCql::StoreBlock"

// StoreBlock writes one immutable block payload under id. When a
// locality daemon is configured the payload is also handed to it; a
// daemon failure is logged and ignored, the block is then served
// remotely instead of locally.
func (s *Store) StoreBlock(c ctx, id uuid.UUID, payload []byte) error {
	key := blockKey(id)
	defer c.FuncIn(StoreBlockLog, BlockKeyLog, key).Out()

	queryStr := fmt.Sprintf(`INSERT
INTO %s.%s (key, data)
VALUES (?, ?)`, s.keyspace, blocksTable)
	query := s.session.Query(queryStr, key, payload).
		Consistency(s.policy.Write)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.insertStats.RecordOp(time.Since(start)) }()

	var err error
	func() {
		defer c.FuncIn(GoCqlStoreBlockLog, BlockKeyLog, key).Out()
		err = query.Exec()
	}()
	if err != nil {
		return brisk.NewError(brisk.ErrOperationFailed,
			"error in StoreBlock[%s] %s", key, err.Error())
	}

	if s.blocksrv != nil {
		if perr := s.blocksrv.Put(id, payload); perr != nil {
			c.Wlog("block %s not pushed to local server: %s",
				key, perr.Error())
		}
	}
	return nil
}

// RetrieveBlockLog can be used in external tool for log parsing
const RetrieveBlockLog = "Cfs::RetrieveBlock"

// GoCqlRetrieveBlockLog can be used in external tool for log parsing
const GoCqlRetrieveBlockLog = "GoCql::RetrieveBlock"

// RetrieveBlock returns a stream over the payload of block id starting
// at rangeStart. A block resident on the local block server is mmapped
// straight off its file; a local file the server vouched for but that
// cannot be mapped is ErrFatal, never a quiet fallback to the cluster.
// Everything else is read remotely, through the block cache when one
// is configured. A block the store has never seen is ErrKeyNotFound.
func (s *Store) RetrieveBlock(c ctx, id uuid.UUID, rangeStart uint64) (
	io.ReadCloser, error) {

	key := blockKey(id)
	defer c.FuncIn(RetrieveBlockLog, BlockKeyLog, key).Out()

	if s.blocksrv != nil {
		ref, ok, err := s.blocksrv.Stat(id, rangeStart)
		switch {
		case err != nil:
			// an unreachable daemon only costs locality
			c.Wlog("local block server unreachable: %s", err.Error())
		case ok:
			c.Vlog(RetrieveBlockLog+" local "+BlockKeyLog, key)
			if ref.Length == 0 {
				return io.NopCloser(bytes.NewReader(nil)), nil
			}
			return mapRange(ref.Path, ref.Offset, ref.Length)
		}
	}

	return s.retrieveRemoteBlock(c, key, rangeStart)
}

func (s *Store) retrieveRemoteBlock(c ctx, key string, rangeStart uint64) (
	io.ReadCloser, error) {

	if s.blockCache != nil {
		if cached, hit := s.blockCache.Get(key); hit {
			c.Vlog(RetrieveBlockLog+" cached "+BlockKeyLog, key)
			return sliceStream(cached.([]byte), rangeStart), nil
		}
	}

	var data []byte
	queryStr := fmt.Sprintf(`SELECT data
FROM %s.%s
WHERE key = ?`, s.keyspace, blocksTable)
	query := s.session.Query(queryStr, key).Consistency(s.policy.Read)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.getStats.RecordOp(time.Since(start)) }()

	var err error
	func() {
		defer c.FuncIn(GoCqlRetrieveBlockLog, BlockKeyLog, key).Out()
		err = query.Scan(&data)
	}()
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, brisk.NewError(brisk.ErrKeyNotFound,
				"block %s does not exist", key)
		}
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error in RetrieveBlock[%s] %s", key, err.Error())
	}

	if s.blockCache != nil {
		s.blockCache.Add(key, data)
	}
	return sliceStream(data, rangeStart), nil
}

// sliceStream streams payload from rangeStart on, empty when the range
// starts at or past the end
func sliceStream(payload []byte, rangeStart uint64) io.ReadCloser {
	if rangeStart >= uint64(len(payload)) {
		return io.NopCloser(bytes.NewReader(nil))
	}
	return io.NopCloser(bytes.NewReader(payload[rangeStart:]))
}

// ReadRange streams the byte range [start, start+length) of the file
// behind inode, seamed together from the file's blocks. A range past
// EOF yields an empty stream, a short file a short read.
func (s *Store) ReadRange(c ctx, inode *brisk.Inode, start uint64,
	length uint64) (io.ReadCloser, error) {

	if inode == nil {
		return nil, brisk.NewError(brisk.ErrBadArguments, "inode is nil")
	}

	var readers []io.Reader
	var closers []io.Closer
	remaining := length
	for _, b := range inode.Blocks {
		if remaining == 0 {
			break
		}
		if b.Offset+b.Length <= start || b.Offset >= start+length {
			continue
		}

		var rangeStart uint64
		if start > b.Offset {
			rangeStart = start - b.Offset
		}
		rc, err := s.RetrieveBlock(c, b.ID, rangeStart)
		if err != nil {
			for _, cl := range closers {
				cl.Close()
			}
			return nil, err
		}

		want := b.Length - rangeStart
		if want > remaining {
			want = remaining
		}
		remaining -= want
		readers = append(readers, io.LimitReader(rc, int64(want)))
		closers = append(closers, rc)
	}

	return &multiStream{
		Reader:  io.MultiReader(readers...),
		closers: closers,
	}, nil
}

// multiStream closes every block stream behind a concatenated read
type multiStream struct {
	io.Reader
	closers []io.Closer
}

func (m *multiStream) Close() error {
	var first error
	for _, cl := range m.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// DeleteBlockLog can be used in external tool for log parsing
const DeleteBlockLog = "Cfs::DeleteBlock"

// GoCqlDeleteBlockLog can be used in external tool for log parsing
const GoCqlDeleteBlockLog = "GoCql::DeleteBlock"

// DeleteBlock removes the payload of block id from the cluster, the
// cache and, best effort, the local block server. Callers are expected
// to have dropped every inode reference to the block first.
func (s *Store) DeleteBlock(c ctx, id uuid.UUID) error {
	key := blockKey(id)
	defer c.FuncIn(DeleteBlockLog, BlockKeyLog, key).Out()

	ts := time.Now().UnixMicro()
	queryStr := fmt.Sprintf(`DELETE
FROM %s.%s
USING TIMESTAMP %d
WHERE key = ?`, s.keyspace, blocksTable, ts)
	query := s.session.Query(queryStr, key).Consistency(s.policy.Write)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.deleteStats.RecordOp(time.Since(start)) }()

	var err error
	func() {
		defer c.FuncIn(GoCqlDeleteBlockLog, BlockKeyLog, key).Out()
		err = query.Exec()
	}()
	if err != nil {
		return brisk.NewError(brisk.ErrOperationFailed,
			"error in DeleteBlock[%s] %s", key, err.Error())
	}

	if s.blockCache != nil {
		s.blockCache.Remove(key)
	}
	if s.blocksrv != nil {
		if derr := s.blocksrv.Delete(id); derr != nil {
			c.Wlog("block %s not dropped from local server: %s",
				key, derr.Error())
		}
	}
	return nil
}
