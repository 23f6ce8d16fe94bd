// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/pnasrat/brisk"
)

// maxDigest is 2^128, the modulus of the md5 digest space
var maxDigest = new(big.Int).Lsh(big.NewInt(1), 128)

// md5abs reads the md5 digest of b as a signed big endian 128 bit
// integer and returns its absolute value. This is the same number the
// random partitioner assigns as a key's token.
func md5abs(b []byte) *big.Int {
	digest := md5.Sum(b)
	n := new(big.Int).SetBytes(digest[:])
	if digest[0]&0x80 != 0 {
		n.Sub(maxDigest, n)
	}
	return n
}

// pathKey derives the inode row key for a path: the absolute value of
// the signed md5 digest, rendered as fixed width hex. Two paths
// colliding on one key would overwrite each other; with md5 that stays
// a theoretical risk.
func pathKey(path string) string {
	return fmt.Sprintf("%032x", md5abs([]byte(path)))
}

// tokenForKey places a row key on the md5 token ring
func tokenForKey(key string) *big.Int {
	return md5abs([]byte(key))
}

// blockKey derives the block row key: plain hex of the 16 id bytes.
// Unlike pathKey this is reversible, blockIDFromKey inverts it.
func blockKey(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}

// blockIDFromKey recovers a block id from its row key
func blockIDFromKey(key string) (uuid.UUID, error) {
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != len(uuid.UUID{}) {
		return uuid.UUID{}, brisk.NewError(brisk.ErrBadArguments,
			"bad block key %q", key)
	}
	var id uuid.UUID
	copy(id[:], raw)
	return id, nil
}
