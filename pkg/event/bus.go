package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/go-musicfox/audiocore/internal/errs"
	"github.com/go-musicfox/audiocore/internal/logging"
)

// Subscription is a handle returned by Subscribe; pass it to Unsubscribe
// to stop receiving events.
type Subscription struct {
	ID   string
	Type Type
}

type subEntry struct {
	id      string
	handler Handler
}

// Stats mirrors v2/pkg/event.EventStats, narrowed to what this bus's
// callers actually consume.
type Stats struct {
	Published int64
	Dropped   int64
	Delivered int64
}

// task is one queued (event, handler) delivery.
type task struct {
	evt     Event
	handler Handler
}

// Bus is a fan-out publish/subscribe bus with a bounded queue and a fixed
// worker pool. Publish never blocks the caller: when the queue is full the
// event is dropped and Stats.Dropped is incremented. Unlike
// MonitoringHub's "oldest entry dropped" tap, this bus drops the newest
// entry rather than evicting the oldest, since it fans out to N
// independent subscribers and evicting from N queues atomically isn't
// worth the complexity for a low-rate control bus.
type Bus struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[Type][]subEntry

	queue   chan task
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	statsMu sync.Mutex
	stats   Stats
}

const defaultQueueSize = 256
const defaultWorkers = 2

// New constructs a Bus. Call Start before publishing.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bus{
		log:  logging.WithComponent(logger, "event"),
		subs: make(map[Type][]subEntry),
	}
}

// Start launches the worker pool. Calling Start twice returns an error.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errs.New(errs.InvalidConfiguration, "event bus already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.queue = make(chan task, defaultQueueSize)
	b.running = true

	for i := 0; i < defaultWorkers; i++ {
		b.wg.Add(1)
		go b.worker(runCtx)
	}
	b.log.Info("event bus started", slog.Int("workers", defaultWorkers))
	return nil
}

// Stop cancels all workers and waits for them to drain in-flight tasks.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	cancel := b.cancel
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
	b.log.Info("event bus stopped")
}

func (b *Bus) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *Bus) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-b.queue:
			if !ok {
				return
			}
			t.handler(t.evt)
			b.statsMu.Lock()
			b.stats.Delivered++
			b.statsMu.Unlock()
		}
	}
}

// Subscribe registers handler for events of the given type and returns a
// Subscription to later Unsubscribe with.
func (b *Bus) Subscribe(t Type, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.NewString()
	b.subs[t] = append(b.subs[t], subEntry{id: id, handler: handler})
	return Subscription{ID: id, Type: t}
}

// Unsubscribe removes a previously returned Subscription.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.subs[sub.Type]
	for i, e := range entries {
		if e.id == sub.ID {
			b.subs[sub.Type] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Publish enqueues evt for delivery to every current subscriber of its
// type. Never blocks: if the queue is full for a given handler dispatch,
// that dispatch is dropped and counted.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := append([]subEntry(nil), b.subs[evt.Type]...)
	running := b.running
	b.mu.RUnlock()

	b.statsMu.Lock()
	b.stats.Published++
	b.statsMu.Unlock()

	if !running {
		return
	}
	for _, e := range handlers {
		select {
		case b.queue <- task{evt: evt, handler: e.handler}:
		default:
			b.statsMu.Lock()
			b.stats.Dropped++
			b.statsMu.Unlock()
		}
	}
}

// GetStats returns a snapshot of publish/delivery/drop counters.
func (b *Bus) GetStats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}
