// SPDX-License-Identifier: GPL-2.0-or-later

// Package jobs runs culling jobs on a bounded set of goroutines.
package jobs

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool bounds how many jobs run at once. Submit and Wait on the pool itself
// share one barrier, so a pool used by several goroutines should hand each
// of them a Group.
type Pool struct {
	slots chan struct{}

	mu sync.Mutex
	g  *Group
}

// NewPool returns a pool running at most workers jobs at once. workers <= 0
// uses one worker per CPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{slots: make(chan struct{}, workers)}
}

func (p *Pool) Workers() int {
	return cap(p.slots)
}

// Group returns a submitter with its own barrier. Its jobs count against the
// worker limit of the pool.
func (p *Pool) Group() *Group {
	return &Group{p: p}
}

func (p *Pool) shared() *Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.g == nil {
		p.g = p.Group()
	}
	return p.g
}

// Submit schedules job. It blocks while all workers are busy.
func (p *Pool) Submit(job func()) {
	p.shared().Submit(job)
}

// Wait blocks until every job submitted to the pool so far finished.
func (p *Pool) Wait() {
	p.mu.Lock()
	g := p.g
	p.g = nil
	p.mu.Unlock()
	if g != nil {
		g.Wait()
	}
}

// Group is a set of jobs with one barrier.
type Group struct {
	p *Pool
	g errgroup.Group
}

// Submit schedules job. It blocks while all workers of the pool are busy.
func (g *Group) Submit(job func()) {
	g.p.slots <- struct{}{}
	g.g.Go(func() error {
		defer func() { <-g.p.slots }()
		job()
		return nil
	})
}

// Wait blocks until every job submitted to the group finished.
func (g *Group) Wait() {
	_ = g.g.Wait()
}

// Serial runs every job right away in Submit. It is useful in tests and
// single threaded tools.
type Serial struct{}

func (Serial) Submit(job func()) {
	job()
}

func (Serial) Wait() {}
