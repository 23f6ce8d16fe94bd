// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import "github.com/gocql/gocql"

// Cluster is an interface to configure the default cluster implementation.
// Cluster will be implemented by real and mock gocql.
type Cluster interface {
	CreateSession() (Session, error)
}

// Session is the interface used to interact with the database.
// Session will be implemented by real and mock gocql.
type Session interface {
	Close()
	Closed() bool
	Query(stmt string, values ...interface{}) Query
	KeyspaceMetadata(keyspace string) (*gocql.KeyspaceMetadata, error)
}

// Query represents a CQL statement that can be executed.
// Query will be implemented by real and mock gocql.
type Query interface {
	Consistency(cl gocql.Consistency) Query
	Exec() error
	Scan(dest ...interface{}) error
	String() string
	Iter() Iter
}

// Iter represents an iterator that can be used to iterate over all rows
// that were returned by a query.
// Iter will be implemented by real and mock gocql.
type Iter interface {
	Close() error
	NumRows() int
	Scan(dest ...interface{}) bool
}
