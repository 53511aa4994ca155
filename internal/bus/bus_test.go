package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignitex/ignitex/internal/domain"
)

func TestStartWithoutSubscribersFails(t *testing.T) {
	b := New()
	err := b.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subscribers")
}

func TestSubscribeAfterStartFails(t *testing.T) {
	b := New()
	_, err := b.Subscribe("first", 8)
	require.NoError(t, err)
	require.NoError(t, b.Start())

	_, err = b.Subscribe("late", 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestPublishBeforeStartFails(t *testing.T) {
	b := New()
	_, err := b.Subscribe("first", 8)
	require.NoError(t, err)

	err = b.Publish(context.Background(), Message{Kind: KindSignalPublished})
	assert.Error(t, err)
}

func TestPublishFansOutInOrder(t *testing.T) {
	b := New()
	a, err := b.Subscribe("a", 8)
	require.NoError(t, err)
	c, err := b.Subscribe("c", 8)
	require.NoError(t, err)
	require.NoError(t, b.Start())

	first := Message{Kind: KindSignalPublished, Signal: &domain.PublishedSignal{}}
	second := Message{Kind: KindOutcomeResolved, Outcome: &domain.Outcome{SignalID: "s1"}}
	require.NoError(t, b.Publish(context.Background(), first))
	require.NoError(t, b.Publish(context.Background(), second))

	for _, ch := range []<-chan Message{a, c} {
		assert.Equal(t, KindSignalPublished, (<-ch).Kind)
		assert.Equal(t, KindOutcomeResolved, (<-ch).Kind)
	}
}

func TestPublishBlocksOnFullBufferUntilCancel(t *testing.T) {
	b := New()
	_, err := b.Subscribe("slow", 1)
	require.NoError(t, err)
	require.NoError(t, b.Start())

	require.NoError(t, b.Publish(context.Background(), Message{Kind: KindSignalPublished}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = b.Publish(ctx, Message{Kind: KindSignalPublished})
	assert.Error(t, err)
}

func TestCloseTerminatesSubscriberChannels(t *testing.T) {
	b := New()
	ch, err := b.Subscribe("a", 8)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	b.Close()

	_, open := <-ch
	assert.False(t, open)

	err = b.Publish(context.Background(), Message{Kind: KindSignalPublished})
	assert.Error(t, err)
}

func TestCloseWaitsForInflightPublish(t *testing.T) {
	b := New()
	_, err := b.Subscribe("slow", 0)
	require.NoError(t, err)
	require.NoError(t, b.Start())

	// Nobody reads the unbuffered channel, so this publish blocks mid-send.
	ctx, cancel := context.WithCancel(context.Background())
	pubErr := make(chan error, 1)
	go func() {
		pubErr <- b.Publish(ctx, Message{Kind: KindSignalPublished})
	}()
	time.Sleep(20 * time.Millisecond) // let the publish reach its send

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close completed while a publish was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	require.Error(t, <-pubErr)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close did not complete after the publish was cancelled")
	}

	err = b.Publish(context.Background(), Message{Kind: KindSignalPublished})
	assert.Error(t, err)
}
