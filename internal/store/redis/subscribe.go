package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/store"
)

// SubscribeOrdered implements store.DocumentStore.
//
// The change channel is joined before the first read so no write can fall
// between the initial snapshot and the first notification. Notifications
// that queue up while a snapshot is loading are folded into one reload.
//
// The client reconnects on its own after a connection loss. The outage is
// reported once through onError, and every resubscription triggers a full
// reload so writes made while disconnected reach the subscriber.
func (s *Store) SubscribeOrdered(ctx context.Context, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)

	ps := s.client.Subscribe(ctx, s.keys.Changes())
	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		_ = ps.Close()
		return nil, &domain.SubscriptionError{Err: err}
	}

	l := &listener{
		store:      s,
		ch:         ps.ChannelWithSubscriptions(redis.WithChannelHealthCheckInterval(s.healthInterval)),
		onSnapshot: onSnapshot,
		onError:    onError,
		done:       make(chan struct{}),
	}
	go l.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
			<-l.done
		})
	}, nil
}

type listener struct {
	store      *Store
	ch         <-chan interface{}
	onSnapshot store.SnapshotFunc
	onError    store.ErrorFunc
	done       chan struct{}

	// down is set from the first failure until the next good snapshot.
	down bool
}

func (l *listener) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.store.healthInterval)
	defer ticker.Stop()

	l.deliver(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.check(ctx)
		case msg, ok := <-l.ch:
			if !ok {
				return
			}
			if sub, isSub := msg.(*redis.Subscription); isSub && sub.Kind != "subscribe" {
				continue
			}
			if !drain(l.ch) {
				return
			}
			l.deliver(ctx)
		}
	}
}

// deliver loads the collection and hands it to the subscriber.
func (l *listener) deliver(ctx context.Context) {
	apps, err := l.store.List(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		l.fail(err)
		return
	}
	l.down = false
	l.onSnapshot(apps, len(apps) == 0)
}

// check pings the server. A failed ping reports the outage; a good ping
// after an outage reloads in case the resubscription went unnoticed.
func (l *listener) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, l.store.healthInterval)
	defer cancel()

	err := l.store.client.Ping(pingCtx).Err()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		l.fail(err)
		return
	}
	if l.down {
		l.deliver(ctx)
	}
}

func (l *listener) fail(err error) {
	if l.down {
		return
	}
	l.down = true
	l.onError(&domain.SubscriptionError{Err: err})
}

// drain discards pending messages. It reports false if ch was closed.
func drain(ch <-chan interface{}) bool {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}
