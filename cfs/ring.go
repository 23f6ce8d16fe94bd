// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/gocql/gocql"

	"github.com/pnasrat/brisk"
)

// tokenRing is a client side picture of the cluster's md5 token ring,
// just enough to name the replica endpoints of a row key.
type tokenRing struct {
	rf     int
	tokens []*big.Int
	owners []string // owners[i] holds tokens[i]
}

func (r *tokenRing) Len() int { return len(r.tokens) }

func (r *tokenRing) Less(i, j int) bool {
	return r.tokens[i].Cmp(r.tokens[j]) < 0
}

func (r *tokenRing) Swap(i, j int) {
	r.tokens[i], r.tokens[j] = r.tokens[j], r.tokens[i]
	r.owners[i], r.owners[j] = r.owners[j], r.owners[i]
}

// endpoints walks the ring from the key's token upwards and collects
// rf distinct owners, the successor placement of SimpleStrategy. For
// topology aware keyspaces this is an approximation that ignores
// datacenters and racks.
func (r *tokenRing) endpoints(key string) []string {
	token := tokenForKey(key)
	i := sort.Search(len(r.tokens), func(i int) bool {
		return r.tokens[i].Cmp(token) >= 0
	})

	hosts := make([]string, 0, r.rf)
	seen := make(map[string]struct{}, r.rf)
	for n := 0; n < len(r.tokens) && len(hosts) < r.rf; n++ {
		owner := r.owners[(i+n)%len(r.tokens)]
		if _, dup := seen[owner]; dup {
			continue
		}
		seen[owner] = struct{}{}
		hosts = append(hosts, owner)
	}
	return hosts
}

// RingLog can be used in external tool for log parsing
const RingLog = "Cfs::Ring"

// getRing returns the Store's token ring, building it on first use.
// The ring is a snapshot, endpoint answers go stale when the cluster
// topology changes.
func (s *Store) getRing(c ctx) (*tokenRing, error) {
	s.ringMu.Lock()
	defer s.ringMu.Unlock()
	if s.ring != nil {
		return s.ring, nil
	}
	ring, err := s.buildRing(c)
	if err != nil {
		return nil, err
	}
	s.ring = ring
	return ring, nil
}

func (s *Store) buildRing(c ctx) (*tokenRing, error) {
	defer c.FuncInName(RingLog).Out()

	var partitioner, localAddr string
	var localTokens []string
	localQuery := s.session.Query(`SELECT partitioner, rpc_address, tokens
FROM system.local`).Consistency(gocql.One)
	err := localQuery.Scan(&partitioner, &localAddr, &localTokens)
	if err != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error reading system.local %s", err.Error())
	}
	// both path keys and the endpoint walk assume md5 tokens
	if !strings.Contains(partitioner, "RandomPartitioner") {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"partitioner %q does not place keys by md5", partitioner)
	}

	ring := &tokenRing{rf: s.replicationFactor(c)}
	addOwner := func(addr string, tokens []string) error {
		for _, t := range tokens {
			n, ok := new(big.Int).SetString(t, 10)
			if !ok {
				return brisk.NewError(brisk.ErrOperationFailed,
					"bad token %q for endpoint %s", t, addr)
			}
			ring.tokens = append(ring.tokens, n)
			ring.owners = append(ring.owners, addr)
		}
		return nil
	}
	if err := addOwner(localAddr, localTokens); err != nil {
		return nil, err
	}

	peersQuery := s.session.Query(`SELECT peer, rpc_address, tokens
FROM system.peers`).Consistency(gocql.One)
	iter := peersQuery.Iter()
	var peer, rpcAddr string
	var tokens []string
	for iter.Scan(&peer, &rpcAddr, &tokens) {
		addr := rpcAddr
		// nodes bound to the wildcard address advertise it in
		// rpc_address, fall back to the peering address
		if addr == "" || addr == "0.0.0.0" {
			addr = peer
		}
		if aerr := addOwner(addr, tokens); aerr != nil {
			iter.Close()
			return nil, aerr
		}
	}
	if err := iter.Close(); err != nil {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"error reading system.peers %s", err.Error())
	}
	if len(ring.tokens) == 0 {
		return nil, brisk.NewError(brisk.ErrOperationFailed,
			"cluster reports no tokens")
	}

	sort.Sort(ring)
	c.Dlog("token ring built: %d tokens, rf %d", len(ring.tokens), ring.rf)
	return ring, nil
}

// replicationFactor sums the numeric strategy options of the keyspace:
// the single replication_factor of SimpleStrategy or the per
// datacenter factors of NetworkTopologyStrategy
func (s *Store) replicationFactor(c ctx) int {
	md, err := s.session.KeyspaceMetadata(s.keyspace)
	if err != nil || md == nil {
		c.Wlog("keyspace %q not describable for ring, assuming rf 1: %v",
			s.keyspace, err)
		return 1
	}

	rf := 0
	for _, v := range md.StrategyOptions {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, aerr := strconv.Atoi(str)
		if aerr != nil {
			continue
		}
		rf += n
	}
	if rf == 0 {
		rf = 1
	}
	return rf
}
