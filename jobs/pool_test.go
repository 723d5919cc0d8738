// SPDX-License-Identifier: GPL-2.0-or-later

package jobs

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolWait(t *testing.T) {
	p := NewPool(3)
	for gen := 0; gen < 3; gen++ {
		var n atomic.Int32
		var out [100]int
		for i := range out {
			p.Submit(func() {
				out[i] = i * i
				n.Add(1)
			})
		}
		p.Wait()
		if got := n.Load(); got != 100 {
			t.Fatalf("generation %d: %d jobs ran before Wait returned, want 100", gen, got)
		}
		for i, v := range out {
			if v != i*i {
				t.Errorf("out[%d] = %d, want %d", i, v, i*i)
			}
		}
	}
}

func TestPoolLimit(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	block := make(chan struct{})
	for i := 0; i < 2; i++ {
		p.Submit(func() {
			r := running.Add(1)
			for {
				old := peak.Load()
				if r <= old || peak.CompareAndSwap(old, r) {
					break
				}
			}
			<-block
			running.Add(-1)
		})
	}
	close(block)
	p.Wait()
	if got := peak.Load(); got > 2 {
		t.Errorf("%d jobs ran at once, want at most 2", got)
	}
}

func TestWaitWithoutJobs(t *testing.T) {
	p := NewPool(0)
	if p.Workers() <= 0 {
		t.Errorf("Workers() = %d", p.Workers())
	}
	p.Wait()
	var s Serial
	ran := false
	s.Submit(func() { ran = true })
	s.Wait()
	if !ran {
		t.Errorf("Serial did not run the job")
	}
}

func TestGroupsWaitForTheirOwnJobs(t *testing.T) {
	p := NewPool(4)
	a, b := p.Group(), p.Group()
	release := make(chan struct{})
	a.Submit(func() { <-release })
	var bDone atomic.Bool
	b.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		bDone.Store(true)
	})

	aWaited := make(chan struct{})
	go func() {
		a.Wait()
		close(aWaited)
	}()
	b.Wait()
	if !bDone.Load() {
		t.Errorf("second group's Wait returned before its job finished")
	}
	select {
	case <-aWaited:
		t.Errorf("first group's Wait returned while its job was blocked")
	default:
	}
	close(release)
	<-aWaited
}

func TestGroupLimit(t *testing.T) {
	p := NewPool(1)
	a, b := p.Group(), p.Group()
	var running, peak atomic.Int32
	job := func() {
		r := running.Add(1)
		if r > peak.Load() {
			peak.Store(r)
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
	}
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			a.Submit(job)
		}
		a.Wait()
		close(done)
	}()
	for i := 0; i < 10; i++ {
		b.Submit(job)
	}
	b.Wait()
	<-done
	if got := peak.Load(); got > 1 {
		t.Errorf("%d jobs ran at once on a pool of one worker", got)
	}
}
