package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
)

// ErrQueueClosed is returned by Pop once the queue is closed and empty,
// and by Push after Close.
var ErrQueueClosed = errors.New("pipeline: queue closed")

// Queue is a bounded FIFO of segments waiting for upload. When full, Push
// evicts the oldest segment so the capture loop never blocks.
type Queue struct {
	mu       sync.Mutex
	items    []*audio.Segment
	capacity int
	closed   bool

	ready chan struct{}
	done  chan struct{}

	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most capacity segments
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		items:    make([]*audio.Segment, 0, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Push appends seg. It returns the evicted segment when the queue was full.
func (q *Queue) Push(seg *audio.Segment) (*audio.Segment, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}

	var evicted *audio.Segment
	if len(q.items) >= q.capacity {
		evicted = q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped.Add(1)
	}
	q.items = append(q.items, seg)
	q.mu.Unlock()

	q.signal()
	return evicted, nil
}

// Pop blocks until a segment is available, the queue is closed and
// drained, or ctx is done.
func (q *Queue) Pop(ctx context.Context) (*audio.Segment, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			seg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()

			if more {
				q.signal()
			}
			return seg, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Close stops accepting segments. Queued segments can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Len returns the number of queued segments
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the number of segments evicted by overflow
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
