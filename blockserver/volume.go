// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package blockserver

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// BlockRef names the local byte range a resident block serves from.
// Path is host absolute and meaningful outside the daemon's process,
// clients mmap it directly.
type BlockRef struct {
	Path   string
	Offset uint64
	Length uint64
}

// Volume is the daemon's on disk block holding: one flat file per
// block under a two level fanout so no directory grows large. The
// filesystem is abstracted so tests run against a memory fs.
type Volume struct {
	fs   afero.Fs
	root string
}

// NewVolume opens the block volume rooted at root, creating it if
// needed
func NewVolume(fs afero.Fs, root string) (*Volume, error) {
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &Volume{fs: fs, root: root}, nil
}

// PathFor returns the path block id lives at when resident
func (v *Volume) PathFor(id uuid.UUID) string {
	key := hex.EncodeToString(id[:])
	return filepath.Join(v.root, key[:2], key[2:4], key+".blk")
}

// Put makes the payload of block id resident and reports whether the
// block is new to the volume. The payload lands in a temp file which
// is renamed over the final path, a crashed put leaves a stray temp
// file but never a short block file.
func (v *Volume) Put(id uuid.UUID, payload []byte) (bool, error) {
	path := v.PathFor(id)
	dir := filepath.Dir(path)
	if err := v.fs.MkdirAll(dir, 0755); err != nil {
		return false, err
	}
	created := false
	if _, err := v.fs.Stat(path); os.IsNotExist(err) {
		created = true
	}

	tmp, err := afero.TempFile(v.fs, dir, ".put-")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(payload); err != nil {
		tmp.Close()
		v.fs.Remove(tmpName)
		return false, err
	}
	if err = tmp.Close(); err != nil {
		v.fs.Remove(tmpName)
		return false, err
	}
	if err = v.fs.Rename(tmpName, path); err != nil {
		v.fs.Remove(tmpName)
		return false, err
	}
	return created, nil
}

// Stat reports whether block id is resident. The ref of a resident
// block starts pos bytes in, with pos clamped to the block's size, so
// Offset+Length always equals the size.
func (v *Volume) Stat(id uuid.UUID, pos uint64) (BlockRef, bool, error) {
	path := v.PathFor(id)
	fi, err := v.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BlockRef{}, false, nil
		}
		return BlockRef{}, false, err
	}

	size := uint64(fi.Size())
	if pos > size {
		pos = size
	}
	return BlockRef{Path: path, Offset: pos, Length: size - pos}, true, nil
}

// Delete drops the resident copy of block id and reports whether a
// copy was there to drop. An absent block is not an error.
func (v *Volume) Delete(id uuid.UUID) (bool, error) {
	err := v.fs.Remove(v.PathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Resident counts the blocks held by the volume
func (v *Volume) Resident() (int, error) {
	count := 0
	err := afero.Walk(v.fs, v.root,
		func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && filepath.Ext(path) == ".blk" {
				count++
			}
			return nil
		})
	return count, err
}
