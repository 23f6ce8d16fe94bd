// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package blockserver implements the block locality daemon and its
// client: a small TCP server co-located with each storage node that
// keeps block payloads resident in a flat file volume, so readers on
// the same host can mmap them instead of pulling them off the cluster.
package blockserver

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Wire ops
const (
	// OpStat asks whether a block is resident and where it lives
	OpStat = uint8(1)
	// OpPut hands the server a payload to keep resident
	OpPut = uint8(2)
	// OpDelete drops the resident copy of a block
	OpDelete = uint8(3)
)

// Response statuses
const (
	StatusOK       = uint8(0)
	StatusNotFound = uint8(1)
	StatusErr      = uint8(2)
)

// maxFrame bounds a length prefixed frame, oversized requests are
// rejected before any allocation
const maxFrame = 1 << 30

const requestHeaderSize = 1 + 16 + 8
const responseHeaderSize = 1 + 8 + 8

// RequestHeader leads every request: the op, the block id and, for
// OpStat, the byte position the caller wants to start reading at. A
// length prefixed frame follows the header: the payload for OpPut,
// the caller's hostname hint for OpStat, empty for OpDelete.
type RequestHeader struct {
	Op  uint8
	ID  uuid.UUID
	Pos uint64
}

func (h *RequestHeader) encode(w io.Writer) error {
	var buf [requestHeaderSize]byte
	buf[0] = h.Op
	copy(buf[1:17], h.ID[:])
	binary.LittleEndian.PutUint64(buf[17:25], h.Pos)
	_, err := w.Write(buf[:])
	return err
}

func (h *RequestHeader) decode(r io.Reader) error {
	var buf [requestHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	h.Op = buf[0]
	copy(h.ID[:], buf[1:17])
	h.Pos = binary.LittleEndian.Uint64(buf[17:25])
	return nil
}

// ResponseHeader leads every response. Offset and Length describe the
// local byte range of a resident block after a successful OpStat and
// are zero otherwise. A length prefixed frame follows: the absolute
// file path for a successful OpStat, the error text for StatusErr,
// empty otherwise.
type ResponseHeader struct {
	Status uint8
	Offset uint64
	Length uint64
}

func (h *ResponseHeader) encode(w io.Writer) error {
	var buf [responseHeaderSize]byte
	buf[0] = h.Status
	binary.LittleEndian.PutUint64(buf[1:9], h.Offset)
	binary.LittleEndian.PutUint64(buf[9:17], h.Length)
	_, err := w.Write(buf[:])
	return err
}

func (h *ResponseHeader) decode(r io.Reader) error {
	var buf [responseHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	h.Status = buf[0]
	h.Offset = binary.LittleEndian.Uint64(buf[1:9])
	h.Length = binary.LittleEndian.Uint64(buf[9:17])
	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lbuf [4]byte
	binary.LittleEndian.PutUint32(lbuf[:], uint32(len(payload)))
	if _, err := w.Write(lbuf[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lbuf [4]byte
	if _, err := io.ReadFull(r, lbuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lbuf[:])
	if n == 0 {
		return nil, nil
	}
	if n > maxFrame {
		return nil, fmt.Errorf("frame of %d bytes exceeds the %d limit",
			n, maxFrame)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
