// Copyright (c) 2016 The Brisk Authors.  All rights reserved.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package cfs

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// semTimeout bounds how long an operation may wait for a concurrency
// slot. Waiting longer means the process is wedged, not busy.
const semTimeout time.Duration = 60 * time.Second

// Semaphore caps the store operations in flight at once.
type Semaphore struct {
	slots *semaphore.Weighted
}

// NewSemaphore returns a Semaphore with n slots
func NewSemaphore(n int64) Semaphore {
	return Semaphore{slots: semaphore.NewWeighted(n)}
}

// P acquires a slot, panicking when none frees up within semTimeout
func (s Semaphore) P() {
	ctx, cancel := context.WithTimeout(context.Background(), semTimeout)
	defer cancel()

	if err := s.slots.Acquire(ctx, 1); err != nil {
		panic(fmt.Sprintf("Timeout in Semaphore.P() after %v of waiting",
			semTimeout))
	}
}

// V releases a slot
func (s Semaphore) V() {
	s.slots.Release(1)
}
