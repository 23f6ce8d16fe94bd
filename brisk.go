// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package brisk holds the filesystem entities shared by the CFS store,
// the block server and the tools: inodes, blocks and block placement
// information, together with their binary encoding.
package brisk

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FileType is the kind of filesystem object an inode describes.
type FileType uint8

const (
	// FileTypeDir is a directory inode
	FileTypeDir FileType = 1
	// FileTypeFile is a regular file inode
	FileTypeFile FileType = 2
)

// Inode is the metadata record for one filesystem path. The serialized
// inode payload is the single source of truth for block membership; at
// most one live inode record exists per path key.
type Inode struct {
	User        string
	Group       string
	Mode        uint16
	Ftype       FileType
	Replication uint8
	Mtime       int64 // unix millis, set by the writer

	// Blocks lists the file's data blocks in file order. Empty for
	// directories and empty files.
	Blocks []Block

	// WriteTime is the store-reported write timestamp in microseconds.
	// It is populated when an inode is retrieved and never serialized.
	WriteTime int64
}

// Block is one immutable, independently addressed chunk of file data.
// A changed block gets a new ID; payloads are never updated in place.
type Block struct {
	ID     uuid.UUID
	Offset uint64
	Length uint64
}

// BlockLocation reports the replica endpoints holding one block, for
// locality-aware scheduling. Never stored.
type BlockLocation struct {
	Hosts  []string
	Offset uint64
	Length uint64
}

// Length returns the file length implied by the block list.
func (in *Inode) Length() uint64 {
	if len(in.Blocks) == 0 {
		return 0
	}
	last := in.Blocks[len(in.Blocks)-1]
	return last.Offset + last.Length
}

// IsDir returns true for directory inodes
func (in *Inode) IsDir() bool {
	return in.Ftype == FileTypeDir
}

// Equals compares all persisted fields. WriteTime is read-side only and
// is ignored.
func (in *Inode) Equals(other *Inode) bool {
	if other == nil {
		return false
	}
	eq := in.User == other.User && in.Group == other.Group &&
		in.Mode == other.Mode && in.Ftype == other.Ftype &&
		in.Replication == other.Replication && in.Mtime == other.Mtime
	if !eq {
		return false
	}
	if len(in.Blocks) != len(other.Blocks) {
		return false
	}
	for idx, b := range in.Blocks {
		if b != other.Blocks[idx] {
			return false
		}
	}
	return true
}

func (in *Inode) String() string {
	return fmt.Sprintf(
		"Inode { User: %s Group: %s Mode: %o Ftype: %d Repl: %d "+
			"Mtime: %d Blocks: %d Length: %d }",
		in.User, in.Group, in.Mode, in.Ftype, in.Replication,
		in.Mtime, len(in.Blocks), in.Length())
}

// Depth returns the number of path segments of an absolute path.
// "/" has depth 0, "/a" depth 1, "/a/b" depth 2.
func Depth(path string) int {
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}
