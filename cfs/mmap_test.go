// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pnasrat/brisk"
)

type mmapTests struct {
	suite.Suite
	path     string
	content  []byte
	pageSize uint64
}

func (s *mmapTests) SetupTest() {
	s.pageSize = uint64(os.Getpagesize())
	s.content = make([]byte, 2*s.pageSize+137)
	for i := range s.content {
		s.content[i] = byte(i * 7)
	}

	s.path = filepath.Join(s.T().TempDir(), "block.blk")
	err := os.WriteFile(s.path, s.content, 0644)
	s.Require().NoError(err, "block file setup failed")
}

func (s *mmapTests) TestWholeFile() {
	rc, err := mapRange(s.path, 0, uint64(len(s.content)))
	s.Require().NoError(err, "mapRange failed: %v", err)

	got, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Require().Equal(s.content, got, "mapped view differs from file")
	s.Require().NoError(rc.Close())
}

func (s *mmapTests) TestUnalignedOffset() {
	// an offset off the page boundary exercises the slack view
	offset := s.pageSize + 13
	length := uint64(200)

	rc, err := mapRange(s.path, offset, length)
	s.Require().NoError(err, "mapRange failed: %v", err)

	got, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Require().Equal(s.content[offset:offset+length], got,
		"mapped view misaligned")
	s.Require().NoError(rc.Close())
}

func (s *mmapTests) TestTailRange() {
	size := uint64(len(s.content))

	rc, err := mapRange(s.path, size-5, 5)
	s.Require().NoError(err, "mapRange failed: %v", err)

	got, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Require().Equal(s.content[size-5:], got, "tail view is wrong")
	s.Require().NoError(rc.Close())
}

func (s *mmapTests) TestRangePastEOF() {
	tests := []struct {
		name   string
		offset uint64
		length uint64
	}{
		{"length overruns", 0, uint64(len(s.content)) + 1},
		{"offset past end", uint64(len(s.content)) + 10, 1},
		{"tail overruns", uint64(len(s.content)) - 2, 3},
	}

	for _, test := range tests {
		rc, err := mapRange(s.path, test.offset, test.length)
		s.Require().Error(err, "Failed test %q", test.name)
		s.Require().Nil(rc, "stream should be nil but is not")

		verr, ok := err.(*brisk.Error)
		s.Require().True(ok, "error from mapRange is of type %T", err)
		s.Require().Equal(brisk.ErrFatal, verr.Code,
			"Invalid Error Code in test %q", test.name)
	}
}

func (s *mmapTests) TestMissingFile() {
	rc, err := mapRange(s.path+".gone", 0, 1)
	s.Require().Error(err)
	s.Require().Nil(rc, "stream should be nil but is not")

	verr, ok := err.(*brisk.Error)
	s.Require().True(ok, "error from mapRange is of type %T", err)
	s.Require().Equal(brisk.ErrFatal, verr.Code,
		"Invalid Error Code from mapRange")
}

func (s *mmapTests) TestCloseIdempotent() {
	rc, err := mapRange(s.path, 0, 64)
	s.Require().NoError(err, "mapRange failed: %v", err)

	s.Require().NoError(rc.Close())
	s.Require().NoError(rc.Close(), "second Close must be a no-op")

	// the view is gone, reads drain immediately
	got, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Require().Empty(got, "read %d bytes after Close", len(got))
}

func TestMmap(t *testing.T) {
	suite.Run(t, &mmapTests{})
}
