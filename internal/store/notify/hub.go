// Package notify fans collection changes out to subscribers of in-process
// document stores.
package notify

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/store"
)

// LoadFunc reads the full collection ordered by CreatedAt ascending.
type LoadFunc func(ctx context.Context) ([]domain.App, error)

// Hub delivers full snapshots to its subscribers. Each subscriber has its
// own goroutine; wake-ups that arrive while a snapshot is being built are
// coalesced into one reload, which is correct because every delivery reads
// the whole collection.
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]*subscriber
	next uint64
}

type subscriber struct {
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Subscribe delivers the current collection, then a fresh snapshot after
// every Notify. A load failure is reported once through onError and ends
// the subscription.
//
// The returned Unsubscribe waits for an in-flight callback to return, so it
// must not be called from inside one.
func (h *Hub) Subscribe(ctx context.Context, load LoadFunc, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) store.Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	s := &subscriber{
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.wake <- struct{}{}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = s
	h.mu.Unlock()

	go func() {
		defer close(s.done)
		defer h.remove(id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				apps, err := load(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					onError(err)
					return
				}
				onSnapshot(apps, len(apps) == 0)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-s.done
		})
	}
}

// Notify schedules a snapshot for every subscriber. It never blocks.
func (h *Hub) Notify() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		<-s.done
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}
