// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package cfs implements a filesystem store on top of a CQL cluster:
// hierarchical paths and file blocks are mapped onto rows of the inode
// and blocks tables, directory listings are recovered through secondary
// index scans and block reads are served either from a co-located block
// server (mmapped, zero copy) or from the cluster.
//
// Rather than using gocql types directly, the package defines the
// Cluster, Session, Query and Iter interfaces covering just the slice
// of the gocql API the store needs. real.go backs them with gocql,
// mock.go with testify/mock for the unit tests. Consistency levels and
// sentinel errors are shared with gocql in both cases.
package cfs
