// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package brisk

import (
	"encoding/binary"
)

// Inode payloads are versioned so the layout can evolve without
// rewriting stored rows. Layout, little endian:
//
//	version byte, ftype byte, mode uint16, replication byte,
//	mtime int64, user (uint16 len + bytes), group (uint16 len + bytes),
//	block count uint32, then per block: 16 byte id, offset uint64,
//	length uint64.
const codecVersion = 1

const blockBinSize = 32

// BinSize returns the serialized size of the inode
func (in *Inode) BinSize() int {
	size := 13 // version + ftype + mode + replication + mtime
	size += 2 + len(in.User)
	size += 2 + len(in.Group)
	size += 4
	size += blockBinSize * len(in.Blocks)
	return size
}

// ToBytes writes the inode into b and returns the number of bytes
// written. It does not bounds check, allocate with BinSize().
func (in *Inode) ToBytes(b []byte) int {
	off := 0
	b[off] = codecVersion
	off++
	b[off] = byte(in.Ftype)
	off++
	binary.LittleEndian.PutUint16(b[off:], in.Mode)
	off += 2
	b[off] = in.Replication
	off++
	binary.LittleEndian.PutUint64(b[off:], uint64(in.Mtime))
	off += 8
	binary.LittleEndian.PutUint16(b[off:], uint16(len(in.User)))
	off += 2
	copy(b[off:], in.User)
	off += len(in.User)
	binary.LittleEndian.PutUint16(b[off:], uint16(len(in.Group)))
	off += 2
	copy(b[off:], in.Group)
	off += len(in.Group)
	binary.LittleEndian.PutUint32(b[off:], uint32(len(in.Blocks)))
	off += 4
	for i := range in.Blocks {
		off += in.Blocks[i].ToBytes(b[off:])
	}
	return off
}

// FromBytes reads the inode from b and returns the number of bytes
// consumed. Payloads arrive from the store, so unlike ToBytes every
// read is bounds checked.
func (in *Inode) FromBytes(b []byte) (int, error) {
	if len(b) < 13 {
		return 0, NewError(ErrBadArguments,
			"inode payload too short: %d bytes", len(b))
	}
	if b[0] != codecVersion {
		return 0, NewError(ErrBadArguments,
			"unsupported inode payload version %d", b[0])
	}
	off := 1
	in.Ftype = FileType(b[off])
	off++
	in.Mode = binary.LittleEndian.Uint16(b[off:])
	off += 2
	in.Replication = b[off]
	off++
	in.Mtime = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8

	var err error
	if in.User, off, err = getString(b, off); err != nil {
		return 0, err
	}
	if in.Group, off, err = getString(b, off); err != nil {
		return 0, err
	}

	if len(b) < off+4 {
		return 0, NewError(ErrBadArguments,
			"inode payload truncated at block count")
	}
	numBlocks := binary.LittleEndian.Uint32(b[off:])
	off += 4
	if len(b) < off+blockBinSize*int(numBlocks) {
		return 0, NewError(ErrBadArguments,
			"inode payload truncated: %d blocks expected", numBlocks)
	}
	in.Blocks = make([]Block, numBlocks)
	for i := uint32(0); i < numBlocks; i++ {
		off += in.Blocks[i].FromBytes(b[off:])
	}
	return off, nil
}

func getString(b []byte, off int) (string, int, error) {
	if len(b) < off+2 {
		return "", 0, NewError(ErrBadArguments,
			"inode payload truncated at string length")
	}
	n := int(binary.LittleEndian.Uint16(b[off:]))
	off += 2
	if len(b) < off+n {
		return "", 0, NewError(ErrBadArguments,
			"inode payload truncated at string body")
	}
	return string(b[off : off+n]), off + n, nil
}

// Serialize allocates and fills the inode's payload
func (in *Inode) Serialize() []byte {
	b := make([]byte, in.BinSize())
	in.ToBytes(b)
	return b
}

// DeserializeInode decodes one inode payload
func DeserializeInode(b []byte) (*Inode, error) {
	in := &Inode{}
	if _, err := in.FromBytes(b); err != nil {
		return nil, err
	}
	return in, nil
}

// BinSize returns the serialized size of a block entry
func (blk *Block) BinSize() int {
	return blockBinSize
}

// ToBytes writes the block entry into b and returns the number of
// bytes written. No bounds check.
func (blk *Block) ToBytes(b []byte) int {
	off := copy(b, blk.ID[:])
	binary.LittleEndian.PutUint64(b[off:], blk.Offset)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], blk.Length)
	off += 8
	return off
}

// FromBytes reads the block entry from b and returns the number of
// bytes consumed. No bounds check, callers verify blockBinSize bytes.
func (blk *Block) FromBytes(b []byte) int {
	off := copy(blk.ID[:], b)
	blk.Offset = binary.LittleEndian.Uint64(b[off:])
	off += 8
	blk.Length = binary.LittleEndian.Uint64(b[off:])
	off += 8
	return off
}
