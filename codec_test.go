// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package brisk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type entityTests struct {
	suite.Suite
}

func testInode() *Inode {
	return &Inode{
		User:        "jake",
		Group:       "hadoop",
		Mode:        0644,
		Ftype:       FileTypeFile,
		Replication: 3,
		Mtime:       1467049200123,
		Blocks: []Block{
			{ID: uuid.MustParse("11111111-2222-3333-4444-555555555555"),
				Offset: 0, Length: 1024},
			{ID: uuid.MustParse("66666666-7777-8888-9999-aaaaaaaaaaaa"),
				Offset: 1024, Length: 512},
		},
	}
}

func (s *entityTests) TestInodeRoundTrip() {
	in := testInode()
	payload := in.Serialize()
	s.Require().Equal(in.BinSize(), len(payload),
		"Serialize must fill exactly BinSize bytes")

	out, err := DeserializeInode(payload)
	s.Require().NoError(err, "DeserializeInode failed")
	s.Require().True(in.Equals(out), "inode did not round trip: %s vs %s",
		in, out)
	s.Require().Equal(int64(0), out.WriteTime,
		"WriteTime must not be part of the payload")
}

func (s *entityTests) TestEmptyInodeRoundTrip() {
	in := &Inode{Ftype: FileTypeDir, Mode: 0755}
	out, err := DeserializeInode(in.Serialize())
	s.Require().NoError(err, "DeserializeInode failed")
	s.Require().True(in.Equals(out), "empty inode did not round trip")
	s.Require().Equal(uint64(0), out.Length())
	s.Require().True(out.IsDir())
}

func (s *entityTests) TestCorruptPayloads() {
	good := testInode().Serialize()

	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"too short", good[:8]},
		{"bad version", append([]byte{99}, good[1:]...)},
		{"truncated user", good[:14]},
		{"truncated blocks", good[:len(good)-5]},
	}

	for _, test := range tests {
		_, err := DeserializeInode(test.payload)
		s.Require().Error(err, "payload %q must not decode", test.name)
		berr, ok := err.(*Error)
		s.Require().True(ok, "payload %q returned untyped error", test.name)
		s.Require().Equal(ErrCode(ErrBadArguments), berr.Code,
			"payload %q returned wrong code", test.name)
	}
}

func (s *entityTests) TestLength() {
	in := testInode()
	s.Require().Equal(uint64(1536), in.Length())
	in.Blocks = nil
	s.Require().Equal(uint64(0), in.Length())
}

func (s *entityTests) TestEquals() {
	a := testInode()
	b := testInode()
	s.Require().True(a.Equals(b))

	b.WriteTime = 42
	s.Require().True(a.Equals(b), "WriteTime must not affect equality")

	b.Blocks[1].Length = 513
	s.Require().False(a.Equals(b))

	s.Require().False(a.Equals(nil))
}

func (s *entityTests) TestDepth() {
	tests := []struct {
		path  string
		depth int
	}{
		{"/", 0},
		{"/a", 1},
		{"/a/b", 2},
		{"/tmp/out/part-0000", 3},
	}

	for _, test := range tests {
		s.Require().Equal(test.depth, Depth(test.path),
			"wrong depth for %q", test.path)
	}
}

func TestEntities(t *testing.T) {
	suite.Run(t, &entityTests{})
}
