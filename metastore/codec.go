// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package metastore

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pnasrat/brisk"
)

// The record payload is a flat sequence of tagged fields: field id
// byte, wire type byte, uint32 little endian length, payload bytes.
// Unknown field ids and unknown wire types are skipped over their
// length, so old decoders read new payloads and vice versa. Maps
// render as a count followed by length prefixed keys and values, in
// sorted key order so equal records encode identically.

func encodeRecord(rec Record) []byte {
	var buf bytes.Buffer
	for _, id := range rec.fieldIDs() {
		v := rec.fieldValue(id)
		buf.WriteByte(byte(id))
		buf.WriteByte(byte(v.wt))
		switch v.wt {
		case wireString:
			writeChunk(&buf, []byte(v.s))
		case wireI64:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.i))
			writeChunk(&buf, b[:])
		case wireMap:
			writeChunk(&buf, encodeMap(v.m))
		}
	}
	return buf.Bytes()
}

func decodeRecord(data []byte, rec Record) error {
	off := 0
	for off < len(data) {
		if off+2 > len(data) {
			return brisk.NewError(brisk.ErrBadArguments,
				"record truncated at byte %d", off)
		}
		id := FieldID(data[off])
		wt := wireType(data[off+1])
		off += 2

		chunk, n, err := readChunk(data[off:])
		if err != nil {
			return err
		}
		off += n

		switch wt {
		case wireString:
			rec.setFieldValue(id, stringValue(string(chunk)))
		case wireI64:
			if len(chunk) != 8 {
				return brisk.NewError(brisk.ErrBadArguments,
					"i64 field %d holds %d bytes", id, len(chunk))
			}
			rec.setFieldValue(id,
				i64Value(int64(binary.LittleEndian.Uint64(chunk))))
		case wireMap:
			m, merr := decodeMap(chunk)
			if merr != nil {
				return merr
			}
			rec.setFieldValue(id, mapValue(m))
		}
	}
	return nil
}

func encodeMap(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(keys)))
	buf.Write(b[:])
	for _, k := range keys {
		writeChunk(&buf, []byte(k))
		writeChunk(&buf, []byte(m[k]))
	}
	return buf.Bytes()
}

func decodeMap(data []byte) (map[string]string, error) {
	if len(data) < 4 {
		return nil, brisk.NewError(brisk.ErrBadArguments,
			"map header truncated")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	if count == 0 {
		return nil, nil
	}

	m := make(map[string]string, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		k, n, err := readChunk(data[off:])
		if err != nil {
			return nil, err
		}
		off += n
		v, n, err := readChunk(data[off:])
		if err != nil {
			return nil, err
		}
		off += n
		m[string(k)] = string(v)
	}
	return m, nil
}

func writeChunk(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readChunk(b []byte) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, brisk.NewError(brisk.ErrBadArguments,
			"chunk length truncated")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	if uint64(n) > uint64(len(b)-4) {
		return nil, 0, brisk.NewError(brisk.ErrBadArguments,
			"chunk of %d bytes overruns the payload", n)
	}
	return b[4 : 4+n], 4 + int(n), nil
}
