// Copyright 2026 The lognode Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workerpool provides a fixed pool of executors for blocking work.
//
// Request handlers submit closures here so that cryptographic validation,
// database scans, sequencer calls and outbound proxying never run on the
// serving goroutine pool unbounded.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("workerpool: pool stopped")

// Job is an arbitrary function run by one of the pool's executors.
type Job func()

// Pool is a fixed set of executor goroutines fed from a bounded queue.
type Pool struct {
	jobs chan Job
	eg   errgroup.Group

	mu      sync.Mutex
	stopped bool
}

// New creates a Pool of execs executor goroutines with a queue of depth
// pending jobs. A depth of 0 means submissions hand off directly to an
// executor, blocking until one is free.
func New(execs, depth int) (*Pool, error) {
	if execs <= 0 {
		return nil, fmt.Errorf("workerpool: %d executors, want > 0", execs)
	}
	if depth < 0 {
		return nil, fmt.Errorf("workerpool: queue depth %d, want >= 0", depth)
	}
	p := &Pool{jobs: make(chan Job, depth)}
	for i := 0; i < execs; i++ {
		p.eg.Go(func() error {
			for job := range p.jobs {
				job()
			}
			return nil
		})
	}
	return p, nil
}

// Submit queues job for execution. It blocks while the queue is full, and
// gives up when ctx is done. Submit never runs the job on the calling
// goroutine.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The lock is held across the send so that Stop cannot close the
	// channel between the stopped check and the send.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue, waits for all queued jobs to drain and for the
// executors to exit. Stop is idempotent; Submit calls made after Stop
// return ErrStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()
	_ = p.eg.Wait()
}
