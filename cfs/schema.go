// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/pnasrat/brisk"
)

const inodeTable = "inode"
const blocksTable = "blocks"

// racing schema creators recheck after rand([0, bootstrapBackoffMs)) ms
var bootstrapBackoffMs = 5000

var schemaRetryPause = time.Second

// EnsureSchemaLog can be used in external tool for log parsing
const EnsureSchemaLog = "Cfs::EnsureSchema"

// CreateSchemaLog can be used in external tool for log parsing
const CreateSchemaLog = "Cfs::CreateSchema"

// KeyspaceLog is the format for keyspace args in logs
const KeyspaceLog = "Keyspace: %s"

// EnsureSchema sets up the keyspace, tables and indexes this Store
// needs, creating whatever is missing. It is idempotent and safe to
// call concurrently: callers within one process are deduplicated,
// racing creators across processes desynchronize through a randomized
// backoff before the first DDL. Open calls it, so calling it again is
// only needed after an out of band schema drop.
func (s *Store) EnsureSchema(c ctx) error {
	if s.ensured.Load() {
		return nil
	}
	_, err, _ := s.ensure.Do(s.keyspace, func() (interface{}, error) {
		if s.ensured.Load() {
			return nil, nil
		}
		if err := s.bootstrapSchema(c); err != nil {
			return nil, err
		}
		s.ensured.Store(true)
		return nil, nil
	})
	return err
}

func (s *Store) bootstrapSchema(c ctx) error {
	defer c.FuncIn(EnsureSchemaLog, KeyspaceLog, s.keyspace).Out()

	md := s.describeKeyspace(c)
	if md == nil {
		// Several stores typically start together against a fresh
		// cluster. Waiting a random slice of the window lets one of
		// them create the schema and the rest find it on the second
		// look.
		pause := time.Duration(rand.Intn(bootstrapBackoffMs)) *
			time.Millisecond
		c.Dlog("keyspace %q absent, rechecking in %v", s.keyspace, pause)
		time.Sleep(pause)
		md = s.describeKeyspace(c)
	}

	if md == nil {
		if err := s.createSchema(c); err != nil {
			return err
		}
		var err error
		md, err = s.session.KeyspaceMetadata(s.keyspace)
		if err != nil || md == nil {
			return brisk.NewError(brisk.ErrSchemaBad,
				"keyspace %q missing after creation: %v",
				s.keyspace, err)
		}
	}

	return s.applyPolicy(c, md)
}

// describeKeyspace probes for the keyspace. A driver error counts as
// absent, creation settles the difference either way.
func (s *Store) describeKeyspace(c ctx) *gocql.KeyspaceMetadata {
	md, err := s.session.KeyspaceMetadata(s.keyspace)
	if err != nil {
		c.Dlog("describe of keyspace %q: %s", s.keyspace, err.Error())
		return nil
	}
	return md
}

func (s *Store) createSchema(c ctx) error {
	defer c.FuncIn(CreateSchemaLog, KeyspaceLog, s.keyspace).Out()

	ddls := []string{
		fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s"+
			" WITH REPLICATION ="+
			" { 'class' : 'SimpleStrategy',"+
			" 'replication_factor' : %d };",
			s.keyspace, s.cfg.Filesystem.ReplicationFactor),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s"+
			" ( key text PRIMARY KEY, path text,"+
			" sentinel text, data blob );",
			s.keyspace, inodeTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_path_idx"+
			" ON %s.%s (path);",
			inodeTable, s.keyspace, inodeTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_sentinel_idx"+
			" ON %s.%s (sentinel);",
			inodeTable, s.keyspace, inodeTable),
		// block payloads are too large and too cold to be worth
		// cache churn
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.%s"+
			" ( key text PRIMARY KEY, data blob )"+
			" WITH caching = { 'keys' : 'NONE',"+
			" 'rows_per_partition' : 'NONE' };",
			s.keyspace, blocksTable),
	}

	for _, stmt := range ddls {
		query := s.session.Query(stmt)
		err := execWithRetry(c, query, s.cfg.Cluster.CheckSchemaRetries)
		if err != nil {
			return brisk.NewError(brisk.ErrSchemaBad,
				"error %q during %s", err.Error(), stmt)
		}
	}
	return nil
}

func (s *Store) applyPolicy(c ctx, md *gocql.KeyspaceMetadata) error {
	read, err := gocql.ParseConsistencyWrapper(
		s.cfg.Filesystem.ReadConsistency)
	if err != nil {
		return brisk.NewError(brisk.ErrBadArguments,
			"bad read consistency %q: %s",
			s.cfg.Filesystem.ReadConsistency, err.Error())
	}
	write, err := gocql.ParseConsistencyWrapper(
		s.cfg.Filesystem.WriteConsistency)
	if err != nil {
		return brisk.NewError(brisk.ErrBadArguments,
			"bad write consistency %q: %s",
			s.cfg.Filesystem.WriteConsistency, err.Error())
	}

	// QUORUM against a topology aware keyspace is served from the
	// local datacenter
	if strings.Contains(md.StrategyClass, "NetworkTopologyStrategy") {
		if read == gocql.Quorum {
			read = gocql.LocalQuorum
		}
		if write == gocql.Quorum {
			write = gocql.LocalQuorum
		}
	}

	s.policy = Policy{Read: read, Write: write}
	c.Dlog("consistency policy for keyspace %q read: %s write: %s",
		s.keyspace, read, write)
	return nil
}

func execWithRetry(c ctx, q Query, retries int) error {
	var err error
	var i int
	for i = 0; i < retries; i++ {
		err = q.Exec()
		if err == nil {
			break
		}
		time.Sleep(schemaRetryPause)
	}

	if err != nil {
		c.Elog("CQL: Failed after %d attempts query: %q", i, q)
	} else if i > 0 {
		c.Wlog("CQL: Took %d attempts query: %q", i+1, q)
	}
	return err
}
