// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"github.com/pnasrat/brisk"
)

// BlockLocationsLog can be used in external tool for log parsing
const BlockLocationsLog = "Cfs::BlockLocations"

// BlockLocations reports, for each block of a ranged read, the
// endpoints holding its replicas and the byte range it covers. Blocks
// are placed by the md5 token of their block key, so the replica sets
// come from the client side ring without a per block cluster call. An
// empty block list means no locality information, not an error.
//
// The first block of the range reports the range start instead of its
// own offset when its offset lies past the range start; every other
// block reports its stored offset. Host lists carry no ordering.
func (s *Store) BlockLocations(c ctx, blocks []brisk.Block, start uint64,
	length uint64) ([]brisk.BlockLocation, error) {

	if len(blocks) == 0 {
		return nil, nil
	}
	defer c.FuncIn(BlockLocationsLog, "Blocks: %d Start: %d", len(blocks),
		start).Out()

	ring, err := s.getRing(c)
	if err != nil {
		return nil, err
	}

	locations := make([]brisk.BlockLocation, 0, len(blocks))
	for i, b := range blocks {
		offset := b.Offset
		if i == 0 && b.Offset > start {
			offset = start
		}
		locations = append(locations, brisk.BlockLocation{
			Hosts:  ring.endpoints(blockKey(b.ID)),
			Offset: offset,
			Length: b.Length,
		})
	}
	return locations, nil
}
