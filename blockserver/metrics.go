// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package blockserver

import "github.com/prometheus/client_golang/prometheus"

// Keys for block server metrics.
const (
	BlocksStoredTotalKey      = "cfsd_blocks_stored_total"
	BlocksDeletedTotalKey     = "cfsd_blocks_deleted_total"
	StoredBytesTotalKey       = "cfsd_stored_bytes_total"
	StatRequestsTotalKey      = "cfsd_stat_requests_total"
	ResidentBlocksKey         = "cfsd_resident_blocks"
	RequestDurationSecondsKey = "cfsd_request_duration_seconds"

	Hit  = "hit"
	Miss = "miss"
)

// Collectors for block server metrics.
var (
	BlocksStoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: BlocksStoredTotalKey,
		Help: "Cumulative number of blocks made resident.",
	})
	BlocksDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: BlocksDeletedTotalKey,
		Help: "Cumulative number of resident blocks dropped.",
	})
	StoredBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: StoredBytesTotalKey,
		Help: "Cumulative number of block payload bytes made resident.",
	})
	StatRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: StatRequestsTotalKey,
		Help: "Cumulative number of stat requests.",
	}, []string{"result"})
	ResidentBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ResidentBlocksKey,
		Help: "Number of blocks currently resident on the volume.",
	})
	RequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: RequestDurationSecondsKey,
		Help: "Time spent serving one request.",
	}, []string{"op"})
)

// Collectors lists the collectors used by the block server.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		BlocksStoredTotal,
		BlocksDeletedTotal,
		StoredBytesTotal,
		StatRequestsTotal,
		ResidentBlocks,
		RequestDurationSeconds,
	}
}
