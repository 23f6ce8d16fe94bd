// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"github.com/gocql/gocql"
	"github.com/stretchr/testify/mock"
)

// Mock implementations of the Cluster/Session/Query/Iter interfaces so
// unit tests can run without a live cluster. Exported since tests of
// packages layered on this store set up their own expectations.

// MockCluster is a mock implementation of Cluster
type MockCluster struct {
	mock.Mock
}

// CreateSession is a mock implementation of Cluster.CreateSession
func (m *MockCluster) CreateSession() (Session, error) {
	args := m.Called()
	var s Session
	if args.Get(0) != nil {
		s = args.Get(0).(Session)
	}
	return s, args.Error(1)
}

// MockSession is a mock implementation of Session
type MockSession struct {
	mock.Mock
}

// Close is a mock implementation of Session.Close
func (m *MockSession) Close() {
	m.Called()
}

// Closed is a mock implementation of Session.Closed
func (m *MockSession) Closed() bool {
	args := m.Called()
	return args.Bool(0)
}

// Query is a mock implementation of Session.Query
func (m *MockSession) Query(stmt string, values ...interface{}) Query {
	callArgs := append([]interface{}{stmt}, values...)
	args := m.Called(callArgs...)
	var q Query
	if args.Get(0) != nil {
		q = args.Get(0).(Query)
	}
	return q
}

// KeyspaceMetadata is a mock implementation of Session.KeyspaceMetadata
func (m *MockSession) KeyspaceMetadata(
	keyspace string) (*gocql.KeyspaceMetadata, error) {

	args := m.Called(keyspace)
	var md *gocql.KeyspaceMetadata
	if args.Get(0) != nil {
		md = args.Get(0).(*gocql.KeyspaceMetadata)
	}
	return md, args.Error(1)
}

// MockQuery is a mock implementation of Query
type MockQuery struct {
	mock.Mock
}

// Consistency is a mock implementation of Query.Consistency. It returns
// the receiver so expectations stay on one mock.
func (m *MockQuery) Consistency(cl gocql.Consistency) Query {
	m.Called(cl)
	return m
}

// Exec is a mock implementation of Query.Exec
func (m *MockQuery) Exec() error {
	args := m.Called()
	return args.Error(0)
}

// Scan is a mock implementation of Query.Scan. Use Run() on the
// expectation to fill the scan destinations.
func (m *MockQuery) Scan(dest ...interface{}) error {
	args := m.Called(dest...)
	return args.Error(0)
}

// String is a mock implementation of Query.String
func (m *MockQuery) String() string {
	args := m.Called()
	return args.String(0)
}

// Iter is a mock implementation of Query.Iter
func (m *MockQuery) Iter() Iter {
	args := m.Called()
	var i Iter
	if args.Get(0) != nil {
		i = args.Get(0).(Iter)
	}
	return i
}

// MockIter is a mock implementation of Iter
type MockIter struct {
	mock.Mock
}

// Close is a mock implementation of Iter.Close
func (m *MockIter) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NumRows is a mock implementation of Iter.NumRows
func (m *MockIter) NumRows() int {
	args := m.Called()
	return args.Int(0)
}

// Scan is a mock implementation of Iter.Scan. Use Run() on the
// expectation to fill the scan destinations.
func (m *MockIter) Scan(dest ...interface{}) bool {
	args := m.Called(dest...)
	return args.Bool(0)
}
