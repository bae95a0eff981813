package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/appvault/internal/domain"
)

type recorder struct {
	mu        sync.Mutex
	snapshots [][]domain.App
	errs      []error
}

func (r *recorder) onSnapshot(apps []domain.App, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, apps)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func TestHubDeliversInitialAndChanges(t *testing.T) {
	hub := NewHub()
	var size atomic.Int32
	load := func(context.Context) ([]domain.App, error) {
		return make([]domain.App, size.Load()), nil
	}

	rec := &recorder{}
	unsub := hub.Subscribe(context.Background(), load, rec.onSnapshot, rec.onError)
	defer unsub()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	size.Store(2)
	hub.Notify()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.snapshots) >= 2 && len(rec.snapshots[len(rec.snapshots)-1]) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	load := func(context.Context) ([]domain.App, error) { return nil, nil }
	rec := &recorder{}

	unsub := hub.Subscribe(context.Background(), load, rec.onSnapshot, rec.onError)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	unsub()
	unsub()
	assert.Equal(t, 0, hub.Len())

	hub.Notify()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "no snapshot after unsubscribe")
}

func TestHubLoadErrorEndsSubscription(t *testing.T) {
	hub := NewHub()
	boom := errors.New("disk gone")
	load := func(context.Context) ([]domain.App, error) { return nil, boom }
	rec := &recorder{}

	unsub := hub.Subscribe(context.Background(), load, rec.onSnapshot, rec.onError)
	defer unsub()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.errs) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, rec.errs[0], boom)
	assert.Equal(t, 0, rec.count())
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	load := func(context.Context) ([]domain.App, error) { return nil, nil }
	for i := 0; i < 3; i++ {
		rec := &recorder{}
		hub.Subscribe(context.Background(), load, rec.onSnapshot, rec.onError)
	}

	hub.Close()
	assert.Equal(t, 0, hub.Len())
}
