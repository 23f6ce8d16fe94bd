// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"errors"
	"math/big"
	"sort"
	"strings"
	"testing"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	mock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/pnasrat/brisk"
)

type placementTests struct {
	suite.Suite
	sess  *MockSession
	store *Store
}

func (s *placementTests) SetupTest() {
	s.sess = new(MockSession)
	mockSchemaOk(s.sess, simpleStrategyMetadata(2))
	s.store = newMockStore(s.Require(), s.sess, testConfig())
}

// ringAround builds a ring whose tokens bracket the given key, so the
// endpoint walk is deterministic
func ringAround(key string, rf int, owners ...string) *tokenRing {
	tok := tokenForKey(key)
	ring := &tokenRing{rf: rf}
	for i, owner := range owners {
		// one token below the key, the rest above in owner order
		delta := big.NewInt(int64(5 * i))
		var t *big.Int
		if i == 0 {
			t = new(big.Int).Sub(tok, big.NewInt(5))
		} else {
			t = new(big.Int).Add(tok, delta)
		}
		ring.tokens = append(ring.tokens, t)
		ring.owners = append(ring.owners, owner)
	}
	return ring
}

func (s *placementTests) TestEndpointsWalk() {
	ring := ringAround("somekey", 2, "host3", "host1", "host2")

	// the walk starts at the first token at or above the key's
	s.Require().Equal([]string{"host1", "host2"},
		ring.endpoints("somekey"))
}

func (s *placementTests) TestEndpointsWrap() {
	ring := ringAround("somekey", 3, "host3", "host1", "host2")

	s.Require().Equal([]string{"host1", "host2", "host3"},
		ring.endpoints("somekey"),
		"walk must wrap around the ring")
}

func (s *placementTests) TestEndpointsDedupe() {
	ring := ringAround("somekey", 3, "hostA", "hostB", "hostB", "hostA")

	// fewer distinct owners than rf ends the walk early
	s.Require().Equal([]string{"hostB", "hostA"},
		ring.endpoints("somekey"))
}

func (s *placementTests) TestRingSortsInTandem() {
	ring := &tokenRing{
		rf: 1,
		tokens: []*big.Int{
			big.NewInt(300), big.NewInt(100), big.NewInt(200),
		},
		owners: []string{"c", "a", "b"},
	}
	sort.Sort(ring)

	s.Require().Equal([]string{"a", "b", "c"}, ring.owners,
		"owners must move with their tokens")
	s.Require().True(sort.SliceIsSorted(ring.tokens, func(i, j int) bool {
		return ring.tokens[i].Cmp(ring.tokens[j]) < 0
	}), "tokens are not sorted")
}

// mockSystemLocal wires the system.local read
func mockSystemLocal(sess *MockSession, partitioner string, addr string,
	tokens []string, scanErr error) {

	query := new(MockQuery)
	query.On("Consistency", gocql.One).Return()
	if scanErr != nil {
		query.On("Scan", mock.Anything, mock.Anything,
			mock.Anything).Return(scanErr)
	} else {
		query.On("Scan", mock.Anything, mock.Anything,
			mock.Anything).Return(nil).
			Run(func(args mock.Arguments) {
				fillScanDest(args, []interface{}{
					partitioner, addr, tokens,
				})
			})
	}
	sess.On("Query", mock.MatchedBy(func(stmt string) bool {
		return strings.Contains(stmt, "system.local")
	})).Return(query)
}

// mockSystemPeers wires the system.peers scan
func mockSystemPeers(sess *MockSession, rows mockDbRows, closeErr error) {
	iter := new(MockIter)
	mockIterScan(iter, 3, rows, closeErr)

	query := new(MockQuery)
	query.On("Consistency", gocql.One).Return()
	query.On("Iter").Return(iter)
	sess.On("Query", mock.MatchedBy(func(stmt string) bool {
		return strings.Contains(stmt, "system.peers")
	})).Return(query)
}

const randomPartitioner = "org.apache.cassandra.dht.RandomPartitioner"

func (s *placementTests) TestBuildRing() {
	mockSystemLocal(s.sess, randomPartitioner, "10.0.0.1",
		[]string{"100", "300"}, nil)
	mockSystemPeers(s.sess, mockDbRows{
		{"10.0.0.9", "10.0.0.2", []string{"200"}},
		{"10.0.0.3", "0.0.0.0", []string{"400"}},
	}, nil)

	ring, err := s.store.getRing(unitTestCtx)
	s.Require().NoError(err, "getRing failed: %v", err)
	s.Require().Equal(2, ring.rf, "rf must come from the keyspace")

	s.Require().Equal([]string{"10.0.0.1", "10.0.0.2", "10.0.0.1",
		"10.0.0.3"}, ring.owners,
		"ring owners out of token order")
	// the wildcard bound peer is reachable only via its peering
	// address
	s.Require().Equal("10.0.0.3", ring.owners[3])

	// a second call reuses the snapshot
	_, err = s.store.getRing(unitTestCtx)
	s.Require().NoError(err)
	s.sess.AssertNumberOfCalls(s.T(), "Query", 2)
}

func (s *placementTests) TestBuildRingTopologyRf() {
	sess := new(MockSession)
	mockSchemaOk(sess, topologyStrategyMetadata(
		map[string]string{"dc1": "2", "dc2": "1"}))
	store := newMockStore(s.Require(), sess, testConfig())

	mockSystemLocal(sess, randomPartitioner, "10.0.0.1",
		[]string{"100"}, nil)
	mockSystemPeers(sess, mockDbRows{}, nil)

	ring, err := store.getRing(unitTestCtx)
	s.Require().NoError(err, "getRing failed: %v", err)
	s.Require().Equal(3, ring.rf,
		"rf must sum the per datacenter factors")
}

func (s *placementTests) TestBuildRingUndescribableKeyspace() {
	sess := new(MockSession)
	sess.On("KeyspaceMetadata", tstKeyspace).
		Return(simpleStrategyMetadata(3), nil).Once()
	sess.On("KeyspaceMetadata", tstKeyspace).
		Return(nil, errors.New("describe failed"))
	store := newMockStore(s.Require(), sess, testConfig())

	mockSystemLocal(sess, randomPartitioner, "10.0.0.1",
		[]string{"100"}, nil)
	mockSystemPeers(sess, mockDbRows{}, nil)

	ring, err := store.getRing(unitTestCtx)
	s.Require().NoError(err, "getRing failed: %v", err)
	s.Require().Equal(1, ring.rf,
		"undescribable keyspace must fall back to rf 1")
}

func (s *placementTests) TestBuildRingWrongPartitioner() {
	mockSystemLocal(s.sess, "org.apache.cassandra.dht.Murmur3Partitioner",
		"10.0.0.1", []string{"100"}, nil)

	ring, err := s.store.getRing(unitTestCtx)
	s.Require().Error(err)
	s.Require().Nil(ring, "ring should be nil but is not")

	verr, ok := err.(*brisk.Error)
	s.Require().True(ok, "error from getRing is of type %T", err)
	s.Require().Equal(brisk.ErrOperationFailed, verr.Code,
		"Invalid Error Code from getRing")
}

func (s *placementTests) TestBuildRingLocalReadError() {
	mockSystemLocal(s.sess, "", "", nil, errors.New("read timeout"))

	ring, err := s.store.getRing(unitTestCtx)
	s.Require().Error(err)
	s.Require().Nil(ring, "ring should be nil but is not")

	verr, ok := err.(*brisk.Error)
	s.Require().True(ok, "error from getRing is of type %T", err)
	s.Require().Equal(brisk.ErrOperationFailed, verr.Code,
		"Invalid Error Code from getRing")
}

func (s *placementTests) TestBuildRingBadToken() {
	mockSystemLocal(s.sess, randomPartitioner, "10.0.0.1",
		[]string{"notanumber"}, nil)

	ring, err := s.store.getRing(unitTestCtx)
	s.Require().Error(err)
	s.Require().Nil(ring, "ring should be nil but is not")

	verr, ok := err.(*brisk.Error)
	s.Require().True(ok, "error from getRing is of type %T", err)
	s.Require().Equal(brisk.ErrOperationFailed, verr.Code,
		"Invalid Error Code from getRing")
}

func (s *placementTests) TestBuildRingNoTokens() {
	mockSystemLocal(s.sess, randomPartitioner, "10.0.0.1",
		[]string{}, nil)
	mockSystemPeers(s.sess, mockDbRows{}, nil)

	ring, err := s.store.getRing(unitTestCtx)
	s.Require().Error(err)
	s.Require().Nil(ring, "ring should be nil but is not")

	verr, ok := err.(*brisk.Error)
	s.Require().True(ok, "error from getRing is of type %T", err)
	s.Require().Equal(brisk.ErrOperationFailed, verr.Code,
		"Invalid Error Code from getRing")
}

func (s *placementTests) TestBuildRingPeersCloseError() {
	mockSystemLocal(s.sess, randomPartitioner, "10.0.0.1",
		[]string{"100"}, nil)
	mockSystemPeers(s.sess, mockDbRows{}, errors.New("scan interrupted"))

	ring, err := s.store.getRing(unitTestCtx)
	s.Require().Error(err)
	s.Require().Nil(ring, "ring should be nil but is not")

	verr, ok := err.(*brisk.Error)
	s.Require().True(ok, "error from getRing is of type %T", err)
	s.Require().Equal(brisk.ErrOperationFailed, verr.Code,
		"Invalid Error Code from getRing")
}

func (s *placementTests) TestBlockLocations() {
	id1 := uuid.New()
	id2 := uuid.New()

	// inject a known ring, placement is pure math from here
	s.store.ring = &tokenRing{
		rf:     1,
		tokens: []*big.Int{tokenForKey(blockKey(id1))},
		owners: []string{"10.0.0.7"},
	}

	blocks := []brisk.Block{
		{ID: id1, Offset: 64, Length: 64},
		{ID: id2, Offset: 128, Length: 32},
	}

	locations, err := s.store.BlockLocations(unitTestCtx, blocks, 10, 150)
	s.Require().NoError(err, "BlockLocations failed: %v", err)
	s.Require().Len(locations, 2)

	// the first block reports the range start, not its own offset
	s.Require().Equal(uint64(10), locations[0].Offset)
	s.Require().Equal(uint64(64), locations[0].Length)
	s.Require().Equal(uint64(128), locations[1].Offset)
	s.Require().Equal(uint64(32), locations[1].Length)

	for i, loc := range locations {
		s.Require().Equal([]string{"10.0.0.7"}, loc.Hosts,
			"bad hosts on location %d", i)
	}
}

func (s *placementTests) TestBlockLocationsNoClamp() {
	id := uuid.New()
	s.store.ring = &tokenRing{
		rf:     1,
		tokens: []*big.Int{big.NewInt(1)},
		owners: []string{"10.0.0.7"},
	}

	blocks := []brisk.Block{{ID: id, Offset: 0, Length: 64}}

	// a first block starting at or before the range start keeps its
	// stored offset
	locations, err := s.store.BlockLocations(unitTestCtx, blocks, 10, 20)
	s.Require().NoError(err, "BlockLocations failed: %v", err)
	s.Require().Equal(uint64(0), locations[0].Offset)
}

func (s *placementTests) TestBlockLocationsEmpty() {
	locations, err := s.store.BlockLocations(unitTestCtx, nil, 0, 0)
	s.Require().NoError(err, "no blocks is not an error")
	s.Require().Nil(locations, "locations should be nil but is not")
}

func TestPlacement(t *testing.T) {
	suite.Run(t, &placementTests{})
}
