package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePublishDeliversToHandler(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 1)
	b.Subscribe(TypeClip, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	b.Publish(Event{Type: TypeClip, Timestamp: time.Now(), Source: "mixer"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, TypeClip, got[0].Type)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Start(context.Background()))
	defer b.Stop()

	calls := 0
	var mu sync.Mutex
	sub := b.Subscribe(TypeUnderrun, func(e Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	b.Unsubscribe(sub)
	b.Publish(Event{Type: TypeUnderrun})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, calls)
}

func TestPublishBeforeStartDoesNotDeliver(t *testing.T) {
	b := New(nil)
	b.Subscribe(TypeOverrun, func(e Event) { t.Fatal("should not be called") })
	b.Publish(Event{Type: TypeOverrun})
	stats := b.GetStats()
	assert.Equal(t, int64(1), stats.Published)
	assert.Equal(t, int64(0), stats.Delivered)
}

func TestStopIsIdempotent(t *testing.T) {
	b := New(nil)
	require.NoError(t, b.Start(context.Background()))
	b.Stop()
	b.Stop() // must not panic or block
	assert.False(t, b.IsRunning())
}
