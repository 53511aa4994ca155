package matcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/ignitex/internal/domain"
)

func admitted(symbol string, priority domain.Priority) domain.AdmittedDecision {
	return domain.AdmittedDecision{
		ConsensusDecision: domain.ConsensusDecision{Symbol: symbol, Direction: domain.Long},
		Priority:          priority,
		AdmittedAt:        time.Now(),
	}
}

func TestQueueHighPriorityJumpsAhead(t *testing.T) {
	q := NewQueue(8)
	q.Push(admitted("AAA", domain.PriorityMedium))
	q.Push(admitted("BBB", domain.PriorityMedium))
	q.Push(admitted("CCC", domain.PriorityHigh))

	d, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "CCC", d.Symbol)

	d, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "AAA", d.Symbol)
}

func TestQueueEvictsOldestMediumFirst(t *testing.T) {
	q := NewQueue(3)
	q.Push(admitted("M1", domain.PriorityMedium))
	q.Push(admitted("M2", domain.PriorityMedium))
	q.Push(admitted("H1", domain.PriorityHigh))

	evicted := q.Push(admitted("H2", domain.PriorityHigh))
	require.NotNil(t, evicted)
	assert.Equal(t, "M1", evicted.Symbol)
	assert.Equal(t, 3, q.Depth())

	// With no MEDIUM left, the oldest HIGH goes.
	q.Push(admitted("H3", domain.PriorityHigh))
	evicted = q.Push(admitted("H4", domain.PriorityHigh))
	require.NotNil(t, evicted)
	assert.Equal(t, domain.PriorityHigh, evicted.Priority)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(8)
	done := make(chan domain.AdmittedDecision, 1)
	go func() {
		d, ok := q.Pop(context.Background())
		if ok {
			done <- d
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(admitted("XRPUSD", domain.PriorityHigh))

	select {
	case d := <-done:
		assert.Equal(t, "XRPUSD", d.Symbol)
	case <-time.After(time.Second):
		t.Fatal("pop never woke up")
	}
}

func TestQueuePopHonorsContextCancel(t *testing.T) {
	q := NewQueue(8)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestQueueCloseWakesConsumers(t *testing.T) {
	q := NewQueue(8)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(context.Background())
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop never returned after close")
	}
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	q := NewQueue(16)
	for i := 0; i < 5; i++ {
		q.Push(admitted(fmt.Sprintf("S%d", i), domain.PriorityMedium))
	}
	for i := 0; i < 5; i++ {
		d, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("S%d", i), d.Symbol)
	}
}
