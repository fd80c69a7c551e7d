package live

import "sync"

// callbackQueue runs UI callbacks outside the manager lock, one at a time and
// in the order they were queued. A callback that re-enters the manager only
// queues more work; the goroutine already draining picks it up.
type callbackQueue struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

func (q *callbackQueue) enqueue(callback func()) {
	q.mu.Lock()
	q.queue = append(q.queue, callback)
	q.mu.Unlock()
}

func (q *callbackQueue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true

	for len(q.queue) > 0 {
		callback := q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]

		q.mu.Unlock()
		callback()
		q.mu.Lock()
	}

	q.draining = false
	q.mu.Unlock()
}
