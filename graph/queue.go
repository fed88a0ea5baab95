package graph

import "sync"

// PackageQueue is the single-producer/multi-consumer work queue used
// only during discovery (§4.7, C8). pop never blocks: it returns a
// Package if one is buffered, or nil meaning "drained right now, but
// work may still arrive". The "done iff empty and no work in flight"
// pattern is essential to discovery termination and is preserved
// verbatim from the design this was distilled from (§9).
type PackageQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buffered []*Package
	inFlight int
}

// NewPackageQueue constructs an empty queue.
func NewPackageQueue() *PackageQueue {
	q := &PackageQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a Package and wakes all waiters.
func (q *PackageQueue) Push(p *Package) {
	q.mu.Lock()
	q.buffered = append(q.buffered, p)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pop returns a Package without blocking, or nil if none is buffered
// right now.
func (q *PackageQueue) Pop() *Package {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buffered) == 0 {
		return nil
	}
	p := q.buffered[0]
	q.buffered = q.buffered[1:]
	return p
}

// Start bumps the in-flight counter; callers use this after Pop returns
// a non-nil Package and before detaching a worker for it.
func (q *PackageQueue) Start() {
	q.mu.Lock()
	q.inFlight++
	q.mu.Unlock()
}

// Finish drops the in-flight counter and wakes waiters.
func (q *PackageQueue) Finish() {
	q.mu.Lock()
	q.inFlight--
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Wait blocks until either new work is Push()ed or the in-flight
// counter reaches zero.
func (q *PackageQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buffered) == 0 && q.inFlight > 0 {
		q.cond.Wait()
	}
}

// Done reports whether the queue is empty and nothing is in flight.
func (q *PackageQueue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffered) == 0 && q.inFlight == 0
}
