// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"sync"
	"sync/atomic"

	"github.com/gocql/gocql"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/pnasrat/brisk"
	"github.com/pnasrat/brisk/blockserver"
)

// Policy carries the consistency levels all data statements run at.
// It is computed once during initialization and read-only afterwards.
type Policy struct {
	Read  gocql.Consistency
	Write gocql.Consistency
}

// maxConcurrentOps limits the number of concurrent inserts and queries
// to the cluster, otherwise we get timeouts from the store. Timeouts
// are unavoidable since its possible to generate a much faster rate of
// traffic than the cluster can handle. The number 100, has been
// empirically determined.
const maxConcurrentOps = 100

// Store is a filesystem store bound to one CQL cluster and keyspace.
// Operations block on the caller's goroutine; the Store itself is safe
// for concurrent use.
type Store struct {
	cluster  Cluster
	session  Session
	cfg      *Config
	keyspace string
	sem      Semaphore

	policy  Policy
	ensured atomic.Bool
	ensure  singleflight.Group

	// nil when no locality daemon is configured, block reads are
	// then always remote
	blocksrv *blockserver.Client

	// nil when caching is disabled. Caching block payloads is safe
	// since blocks are immutable.
	blockCache *lru.Cache

	ringMu sync.Mutex
	ring   *tokenRing

	insertStats OpStats
	getStats    OpStats
	deleteStats OpStats
	scanStats   OpStats
}

// New initializes a Store from the JSON config file at confFile.
func New(c Ctx, confFile string) (*Store, error) {
	cfg, err := ReadConfig(confFile)
	if err != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error in reading cfs config file %s", err.Error())
	}
	return Open(c, cfg)
}

// Open connects to the cluster described by cfg, sets up the schema if
// needed and returns a ready Store.
func Open(c Ctx, cfg *Config) (*Store, error) {
	cfg.setDefaults()
	cluster := NewRealCluster(&cfg.Cluster)
	return openStore(c, cluster, cfg)
}

func openStore(c ctx, cluster Cluster, cfg *Config) (*Store, error) {
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error in connecting to cluster %s", err.Error())
	}

	s := &Store{
		cluster:     cluster,
		session:     session,
		cfg:         cfg,
		keyspace:    cfg.Cluster.KeySpace,
		sem:         NewSemaphore(maxConcurrentOps),
		insertStats: NewOpStatsInMem("insertCfs"),
		getStats:    NewOpStatsInMem("getCfs"),
		deleteStats: NewOpStatsInMem("deleteCfs"),
		scanStats:   NewOpStatsInMem("scanCfs"),
	}

	if cfg.Filesystem.BlockCacheEntries > 0 {
		cache, lerr := lru.New(cfg.Filesystem.BlockCacheEntries)
		if lerr != nil {
			session.Close()
			return nil, brisk.NewError(brisk.ErrBadArguments,
				"bad block cache size %d: %s",
				cfg.Filesystem.BlockCacheEntries, lerr.Error())
		}
		s.blockCache = cache
	}
	if cfg.Filesystem.BlockServerAddr != "" {
		s.blocksrv = blockserver.NewClient(cfg.Filesystem.BlockServerAddr)
	}

	if err := s.EnsureSchema(c); err != nil {
		session.Close()
		return nil, err
	}
	return s, nil
}

// Close shuts down the session with the cluster. The Store must not be
// used afterwards.
func (s *Store) Close() {
	s.session.Close()
}

// Keyspace returns the keyspace this Store operates on
func (s *Store) Keyspace() string {
	// since we don't support changing keyspace after
	// the session has established, returning the configured
	// keyspace is fine
	return s.keyspace
}

// Policy returns the consistency policy computed at initialization
func (s *Store) Policy() Policy {
	return s.policy
}

// ReportAPIStats reports the per operation statistics collected by
// this Store to stdout
func (s *Store) ReportAPIStats() {
	s.insertStats.(OpStatReporter).ReportOpStats()
	s.getStats.(OpStatReporter).ReportOpStats()
	s.deleteStats.(OpStatReporter).ReportOpStats()
	s.scanStats.(OpStatReporter).ReportOpStats()
}
