// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/pnasrat/brisk"
)

// mapRange maps [offset, offset+length) of the file at path read-only
// and returns a stream over the mapping. The file descriptor is closed
// as soon as the mapping exists, the mapping itself lives until the
// stream's Close. Callers must not pass length 0.
func mapRange(path string, offset uint64, length uint64) (io.ReadCloser,
	error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, brisk.NewError(brisk.ErrFatal,
			"cannot open local block file %s: %s", path, err.Error())
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, brisk.NewError(brisk.ErrFatal,
			"cannot stat local block file %s: %s", path, err.Error())
	}
	// mapping past EOF turns reads into SIGBUS, reject short files
	// up front
	if uint64(fi.Size()) < offset+length {
		return nil, brisk.NewError(brisk.ErrFatal,
			"local block file %s holds %d bytes, range ends at %d",
			path, fi.Size(), offset+length)
	}

	// mmap offsets must sit on a page boundary, back off to one and
	// skip the slack in the view
	pageSize := uint64(os.Getpagesize())
	aligned := offset &^ (pageSize - 1)
	slack := offset - aligned

	view, err := unix.Mmap(int(f.Fd()), int64(aligned),
		int(slack+length), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, brisk.NewError(brisk.ErrFatal,
			"cannot map local block file %s: %s", path, err.Error())
	}

	return &mapReader{
		data: view[slack : slack+length],
		view: view,
	}, nil
}

// mapReader streams a mapped byte range. Close releases the mapping
// and is idempotent.
type mapReader struct {
	data []byte
	view []byte
}

func (m *mapReader) Read(p []byte) (int, error) {
	if len(m.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.data)
	m.data = m.data[n:]
	return n, nil
}

func (m *mapReader) Close() error {
	if m.view == nil {
		return nil
	}
	view := m.view
	m.view = nil
	m.data = nil
	return unix.Munmap(view)
}
