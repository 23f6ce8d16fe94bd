// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"time"

	"github.com/gocql/gocql"
)

// RealCluster is a wrapper around gocql.ClusterConfig
type RealCluster struct {
	cluster *gocql.ClusterConfig
}

// NewRealCluster returns a Cluster configured from cfg
func NewRealCluster(cfg *ClusterConfig) Cluster {
	// Does not return nil
	c := gocql.NewCluster(cfg.Nodes...)
	cc := &RealCluster{
		cluster: c,
	}
	getRealClusterConfig(cc, cfg)
	return cc
}

// CreateSession initiates a session with the cql cluster
// and returns a session object
func (c *RealCluster) CreateSession() (Session, error) {
	s, err := c.cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	ss := &RealSession{
		session: s,
	}
	return ss, err
}

// RealSession is a wrapper around gocql.Session
type RealSession struct {
	session *gocql.Session
}

// Close closes the session with the cql cluster
func (s *RealSession) Close() {
	s.session.Close()
}

// Closed returns true if the session with the cluster is closed
func (s *RealSession) Closed() bool {
	return s.session.Closed()
}

// Query returns a Query object for the given <stmt, values>
func (s *RealSession) Query(stmt string, values ...interface{}) Query {
	q := s.session.Query(stmt, values...)
	// NOTE: Since s.session.Query() returns a struct, it's ok to compare to nil.
	if q == nil {
		return nil
	}
	qq := &RealQuery{
		query: q,
	}
	return qq
}

// KeyspaceMetadata returns the schema description of the given keyspace
func (s *RealSession) KeyspaceMetadata(
	keyspace string) (*gocql.KeyspaceMetadata, error) {

	return s.session.KeyspaceMetadata(keyspace)
}

// RealQuery is a wrapper around gocql.Query
type RealQuery struct {
	query *gocql.Query
}

// Consistency sets the consistency level for this query
func (q *RealQuery) Consistency(cl gocql.Consistency) Query {
	q.query = q.query.Consistency(cl)
	return q
}

// Exec executes the given query
func (q *RealQuery) Exec() error {
	return q.query.Exec()
}

// Scan executes the query, copies the columns of the first
// selected row into the values pointed at by dest and discards
// the rest. If no rows were selected, ErrNotFound is returned
func (q *RealQuery) Scan(dest ...interface{}) error {
	return q.query.Scan(dest...)
}

// String implements the stringer interface for RealQuery
func (q *RealQuery) String() string {
	return q.query.String()
}

// Iter returns iter for RealQuery
func (q *RealQuery) Iter() Iter {
	i := q.query.Iter()
	// NOTE: Since q.query.Iter() returns a struct, it's ok to compare to nil.
	if i == nil {
		return nil
	}

	ii := &RealIter{
		iter: i,
	}
	return ii
}

// RealIter is a wrapper around gocql.Iter
type RealIter struct {
	iter *gocql.Iter
}

// Close is a wrapper around gocql.Iter.Close()
func (i *RealIter) Close() error {
	return i.iter.Close()
}

// NumRows is a wrapper around gocql.Iter.NumRows()
func (i *RealIter) NumRows() int {
	return i.iter.NumRows()
}

// Scan is a wrapper around gocql.Iter.Scan()
func (i *RealIter) Scan(dest ...interface{}) bool {
	return i.iter.Scan(dest...)
}

func getRealClusterConfig(ccr *RealCluster, cfg *ClusterConfig) {

	ccr.cluster.ProtoVersion = 3

	// The session is deliberately not bound to a keyspace so the
	// schema bootstrapper can run before the keyspace exists. Every
	// statement in this package qualifies its table names.
	ccr.cluster.Consistency = gocql.Quorum
	if cfg.NumConns > 0 {
		ccr.cluster.NumConns = cfg.NumConns
	}
	if cfg.ConnTimeoutSec > 0 {
		ccr.cluster.Timeout = time.Duration(cfg.ConnTimeoutSec) * time.Second
	}
	if cfg.Username != "" {
		ccr.cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	ccr.cluster.RetryPolicy =
		&gocql.SimpleRetryPolicy{NumRetries: cfg.QueryNumRetries}
	ccr.cluster.PoolConfig.HostSelectionPolicy =
		gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	ccr.cluster.Events.DisableSchemaEvents = true
}
