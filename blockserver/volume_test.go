// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package blockserver

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
)

type volumeTests struct {
	suite.Suite
	fs  afero.Fs
	vol *Volume
}

func (s *volumeTests) SetupTest() {
	s.fs = afero.NewMemMapFs()
	vol, err := NewVolume(s.fs, "/blocks")
	s.Require().NoError(err, "volume setup failed: %v", err)
	s.vol = vol
}

func (s *volumeTests) TestPathFanout() {
	id := uuid.New()
	key := hex.EncodeToString(id[:])

	want := filepath.Join("/blocks", key[:2], key[2:4], key+".blk")
	s.Require().Equal(want, s.vol.PathFor(id))
}

func (s *volumeTests) TestPutCreates() {
	id := uuid.New()
	payload := []byte("first payload")

	created, err := s.vol.Put(id, payload)
	s.Require().NoError(err, "Put failed: %v", err)
	s.Require().True(created, "first Put must report a new block")

	got, err := afero.ReadFile(s.fs, s.vol.PathFor(id))
	s.Require().NoError(err)
	s.Require().Equal(payload, got, "block file holds bad payload")

	// an overwrite is not a new block
	created, err = s.vol.Put(id, []byte("second payload"))
	s.Require().NoError(err, "Put failed: %v", err)
	s.Require().False(created, "overwrite must not report a new block")

	got, err = afero.ReadFile(s.fs, s.vol.PathFor(id))
	s.Require().NoError(err)
	s.Require().Equal("second payload", string(got))
}

func (s *volumeTests) TestPutLeavesNoTempFiles() {
	id := uuid.New()
	_, err := s.vol.Put(id, []byte("payload"))
	s.Require().NoError(err, "Put failed: %v", err)

	files := 0
	err = afero.Walk(s.fs, "/blocks",
		func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				files++
				s.Require().Equal(".blk", filepath.Ext(path),
					"stray file %s after Put", path)
			}
			return nil
		})
	s.Require().NoError(err)
	s.Require().Equal(1, files)
}

func (s *volumeTests) TestStat() {
	id := uuid.New()
	payload := []byte("0123456789")

	_, ok, err := s.vol.Stat(id, 0)
	s.Require().NoError(err, "absent block must not be an error")
	s.Require().False(ok, "absent block reported resident")

	_, err = s.vol.Put(id, payload)
	s.Require().NoError(err, "Put failed: %v", err)

	tests := []struct {
		name       string
		pos        uint64
		wantOffset uint64
		wantLength uint64
	}{
		{"whole block", 0, 0, 10},
		{"mid block", 4, 4, 6},
		{"at end", 10, 10, 0},
		{"past end clamps", 32, 10, 0},
	}

	for _, test := range tests {
		ref, ok, err := s.vol.Stat(id, test.pos)
		s.Require().NoError(err, "Failed test %q", test.name)
		s.Require().True(ok, "Failed test %q", test.name)
		s.Require().Equal(s.vol.PathFor(id), ref.Path,
			"Failed test %q", test.name)
		s.Require().Equal(test.wantOffset, ref.Offset,
			"Failed test %q", test.name)
		s.Require().Equal(test.wantLength, ref.Length,
			"Failed test %q", test.name)
	}
}

func (s *volumeTests) TestDelete() {
	id := uuid.New()
	_, err := s.vol.Put(id, []byte("payload"))
	s.Require().NoError(err, "Put failed: %v", err)

	removed, err := s.vol.Delete(id)
	s.Require().NoError(err, "Delete failed: %v", err)
	s.Require().True(removed, "Delete must report a dropped copy")

	_, ok, err := s.vol.Stat(id, 0)
	s.Require().NoError(err)
	s.Require().False(ok, "deleted block reported resident")

	removed, err = s.vol.Delete(id)
	s.Require().NoError(err, "absent block must not be an error")
	s.Require().False(removed, "absent block reported dropped")
}

func (s *volumeTests) TestResident() {
	n, err := s.vol.Resident()
	s.Require().NoError(err)
	s.Require().Equal(0, n, "fresh volume holds %d blocks", n)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		_, err := s.vol.Put(id, []byte("payload"))
		s.Require().NoError(err, "Put failed: %v", err)
	}

	n, err = s.vol.Resident()
	s.Require().NoError(err)
	s.Require().Equal(len(ids), n)

	_, err = s.vol.Delete(ids[0])
	s.Require().NoError(err)

	n, err = s.vol.Resident()
	s.Require().NoError(err)
	s.Require().Equal(len(ids)-1, n)
}

func TestVolume(t *testing.T) {
	suite.Run(t, &volumeTests{})
}
