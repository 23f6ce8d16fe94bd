// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// this is a library of helpers shared by the unit tests in this
// package, all of which run against mocked gocql

package cfs

import (
	"strconv"

	"github.com/gocql/gocql"
	mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var unitTestCtx = DefaultCtx

const tstKeyspace = "cfstest"

func testConfig() *Config {
	cfg := &Config{
		Cluster: ClusterConfig{
			Nodes:    []string{"node1"},
			KeySpace: tstKeyspace,
		},
	}
	cfg.setDefaults()
	return cfg
}

// simpleStrategyMetadata fabricates the slice of keyspace metadata the
// store looks at for a SimpleStrategy keyspace
func simpleStrategyMetadata(rf int) *gocql.KeyspaceMetadata {
	return &gocql.KeyspaceMetadata{
		Name:          tstKeyspace,
		StrategyClass: "org.apache.cassandra.locator.SimpleStrategy",
		StrategyOptions: map[string]interface{}{
			"replication_factor": strconv.Itoa(rf),
		},
	}
}

// topologyStrategyMetadata fabricates metadata for a topology aware
// keyspace with the given per datacenter replication factors
func topologyStrategyMetadata(dcRf map[string]string) *gocql.KeyspaceMetadata {
	options := make(map[string]interface{}, len(dcRf))
	for dc, rf := range dcRf {
		options[dc] = rf
	}
	return &gocql.KeyspaceMetadata{
		Name:            tstKeyspace,
		StrategyClass:   "org.apache.cassandra.locator.NetworkTopologyStrategy",
		StrategyOptions: options,
	}
}

// mockSchemaOk makes the keyspace describable so opening the store
// runs no DDL
func mockSchemaOk(sess *MockSession, md *gocql.KeyspaceMetadata) {
	sess.On("KeyspaceMetadata", tstKeyspace).Return(md, nil)
}

// newMockStore opens a Store against fully mocked gocql
func newMockStore(req *require.Assertions, sess *MockSession,
	cfg *Config) *Store {

	cluster := new(MockCluster)
	cluster.On("CreateSession").Return(sess, nil)

	store, err := openStore(unitTestCtx, cluster, cfg)
	req.NoError(err, "openStore failed: %v", err)
	return store
}

// mockDbRows holds the rows a mocked iterator returns, one inner slice
// per row in scan destination order
type mockDbRows [][]interface{}

// mockIterScan installs scan expectations on iter: one successful Scan
// per row, a final false, then Close returning closeErr. nDest is the
// number of scan destinations the code under test passes.
func mockIterScan(iter *MockIter, nDest int, rows mockDbRows,
	closeErr error) {

	matchers := make([]interface{}, nDest)
	for i := range matchers {
		matchers[i] = mock.Anything
	}

	for _, row := range rows {
		row := row
		iter.On("Scan", matchers...).Return(true).Once().
			Run(func(args mock.Arguments) {
				fillScanDest(args, row)
			})
	}
	iter.On("Scan", matchers...).Return(false)
	iter.On("Close").Return(closeErr)
}

// fillScanDest copies one mocked row into the scan destinations
func fillScanDest(dest mock.Arguments, row []interface{}) {
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int64:
			*d = v.(int64)
		case *[]byte:
			*d = append([]byte(nil), v.([]byte)...)
		case *[]string:
			*d = append([]string(nil), v.([]string)...)
		}
	}
}
