package matcher

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/domain"
)

// Queue orders admitted decisions for the quality gate. HIGH priority skips
// ahead of queued MEDIUM decisions; when the queue saturates, the oldest
// MEDIUM decision is dropped first so backpressure never starves HIGH.
type Queue struct {
	mu       sync.Mutex
	high     []domain.AdmittedDecision
	medium   []domain.AdmittedDecision
	capacity int
	signal   chan struct{}
	closed   bool
}

// NewQueue creates a bounded queue.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Push enqueues a decision, returning the decision that was evicted to make
// room, if any.
func (q *Queue) Push(d domain.AdmittedDecision) *domain.AdmittedDecision {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return &d
	}

	var evicted *domain.AdmittedDecision
	if len(q.high)+len(q.medium) >= q.capacity {
		if len(q.medium) > 0 {
			evicted = &q.medium[0]
			q.medium = q.medium[1:]
		} else {
			evicted = &q.high[0]
			q.high = q.high[1:]
		}
		log.Warn().Str("symbol", evicted.Symbol).Str("priority", string(evicted.Priority)).
			Msg("queue saturated, evicting oldest decision")
	}

	if d.Priority == domain.PriorityHigh {
		q.high = append(q.high, d)
	} else {
		q.medium = append(q.medium, d)
	}

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return evicted
}

// Pop blocks until a decision is available or the context is cancelled.
func (q *Queue) Pop(ctx context.Context) (domain.AdmittedDecision, bool) {
	for {
		q.mu.Lock()
		if d, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return d, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return domain.AdmittedDecision{}, false
		}

		select {
		case <-ctx.Done():
			return domain.AdmittedDecision{}, false
		case <-q.signal:
		}
	}
}

// TryPop returns immediately, used by the synchronous scan path.
func (q *Queue) TryPop() (domain.AdmittedDecision, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue) popLocked() (domain.AdmittedDecision, bool) {
	if len(q.high) > 0 {
		d := q.high[0]
		q.high = q.high[1:]
		return d, true
	}
	if len(q.medium) > 0 {
		d := q.medium[0]
		q.medium = q.medium[1:]
		return d, true
	}
	return domain.AdmittedDecision{}, false
}

// Depth reports the queued decision count.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.high) + len(q.medium)
}

// Close wakes blocked consumers; subsequent pushes are rejected.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	close(q.signal)
}
