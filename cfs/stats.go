// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"fmt"
	"sync"
	"time"

	hist "github.com/VividCortex/gohistogram"
)

// OpStats captures per operation statistics, one instance per
// statement kind.
type OpStats interface {
	RecordOp(latency time.Duration)
}

// OpStatReporter dumps the collected statistics to stdout. Statistics
// managers may implement it in addition to OpStats.
type OpStatReporter interface {
	ReportOpStats()
}

// reportQuantiles are the latency quantiles ReportOpStats prints.
var reportQuantiles = []float64{0.25, 0.50, 0.75, 0.99, 0.999}

type opStats struct {
	opName string

	mu      sync.RWMutex
	latency hist.Histogram
	ops     int64
	first   time.Time
	last    time.Time
}

// NewOpStatsInMem returns an in-memory statistics manager holding a
// streaming latency histogram, never raw samples.
func NewOpStatsInMem(name string) OpStats {
	return &opStats{
		opName:  name,
		latency: hist.NewHistogram(100),
	}
}

func (s *opStats) RecordOp(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latency.Add(float64(latency.Nanoseconds()))
	s.ops++

	// the ops/sec figure spans the first to the last recorded op, not
	// the lifetime of the process
	if s.first.IsZero() {
		s.first = time.Now()
	}
	s.last = time.Now()
}

func (s *opStats) ReportOpStats() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fmt.Printf("%s:\n", s.opName)
	for _, q := range reportQuantiles {
		fmt.Printf("  p%-5.4g %10.2f usec\n", q*100,
			s.latency.Quantile(q)/1000)
	}
	if dur := s.last.Sub(s.first); dur >= time.Second {
		fmt.Printf("  rate   %10d ops/sec\n", s.ops/int64(dur.Seconds()))
	} else {
		fmt.Printf("  ops    %10d in %v\n", s.ops, dur)
	}
}
