// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"fmt"
	"sort"
	"time"

	"github.com/pnasrat/brisk"
)

// ListDescendantsLog can be used in external tool for log parsing
const ListDescendantsLog = "Cfs::ListDescendants"

// GoCqlListDescendantsLog can be used in external tool for log parsing
const GoCqlListDescendantsLog = "GoCql::ListDescendants"

// ListChildrenLog can be used in external tool for log parsing
const ListChildrenLog = "Cfs::ListChildren"

// ListDescendants returns every stored path at or below path, path
// itself included when stored, sorted. The subtree is carved out of
// the path index with one half open range scan: paths >= path and,
// when path has more than one character, paths < path with its last
// character incremented. A single character path scans to the end of
// the index. The scan runs at the write consistency level and returns
// at most RowCap rows.
func (s *Store) ListDescendants(c ctx, path string) ([]string, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	defer c.FuncIn(ListDescendantsLog, PathLog, path).Out()

	var query Query
	if len(path) > 1 {
		queryStr := fmt.Sprintf(`SELECT path
FROM %s.%s
WHERE sentinel = ? AND path >= ? AND path < ?
LIMIT %d
ALLOW FILTERING`, s.keyspace, inodeTable, s.cfg.Filesystem.RowCap)
		query = s.session.Query(queryStr, sentinelValue, path,
			incrementLastRune(path))
	} else {
		queryStr := fmt.Sprintf(`SELECT path
FROM %s.%s
WHERE sentinel = ? AND path >= ?
LIMIT %d
ALLOW FILTERING`, s.keyspace, inodeTable, s.cfg.Filesystem.RowCap)
		query = s.session.Query(queryStr, sentinelValue, path)
	}
	query = query.Consistency(s.policy.Write)

	s.sem.P()
	defer s.sem.V()

	start := time.Now()
	defer func() { s.scanStats.RecordOp(time.Since(start)) }()

	found := make(map[string]struct{})
	var iterErr error
	func() {
		defer c.FuncIn(GoCqlListDescendantsLog, PathLog, path).Out()
		iter := query.Iter()
		var p string
		for iter.Scan(&p) {
			found[p] = struct{}{}
		}
		iterErr = iter.Close()
	}()
	if iterErr != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error in ListDescendants[%s] %s", path, iterErr.Error())
	}

	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// incrementLastRune bounds the range scan from above: every descendant
// of path sorts before path with its last character incremented
func incrementLastRune(path string) string {
	runes := []rune(path)
	runes[len(runes)-1]++
	return string(runes)
}

// ListChildren returns the entries directly inside the directory at
// path: the descendants whose depth is exactly one deeper than the
// directory's. The directory itself never appears in the result.
func (s *Store) ListChildren(c ctx, path string) ([]string, error) {
	defer c.FuncIn(ListChildrenLog, PathLog, path).Out()

	all, err := s.ListDescendants(c, path)
	if err != nil {
		return nil, err
	}

	want := brisk.Depth(path) + 1
	children := all[:0]
	for _, p := range all {
		if brisk.Depth(p) == want {
			children = append(children, p)
		}
	}
	return children, nil
}
