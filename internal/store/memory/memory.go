// Package memory is an in-process document store. It backs local
// development (APPVAULT_STORE=memory) and the collection tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/store"
	"github.com/MrSnakeDoc/appvault/internal/store/notify"
)

// Operation names accepted by Fail.
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpBatch     = "batch"
	OpSubscribe = "subscribe"
)

// Store keeps records in a map guarded by a RWMutex and notifies
// subscribers after every committed write.
type Store struct {
	mu       sync.RWMutex
	apps     map[string]*domain.App // ID -> App
	clock    *store.Clock
	hub      *notify.Hub
	failures map[string]error // op -> error returned by the next call
}

var _ store.DocumentStore = (*Store)(nil)

// New creates an empty store using the wall clock.
func New() *Store {
	return NewWithClock(store.NewClock(nil))
}

// NewWithClock creates an empty store stamping records with clock.
func NewWithClock(clock *store.Clock) *Store {
	return &Store{
		apps:     make(map[string]*domain.App),
		clock:    clock,
		hub:      notify.NewHub(),
		failures: make(map[string]error),
	}
}

// Fail makes the next call of op return err. Used to simulate rejected
// writes and broken listeners.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// takeFailure must be called with s.mu held.
func (s *Store) takeFailure(op string) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

// SubscribeOrdered implements store.DocumentStore.
func (s *Store) SubscribeOrdered(ctx context.Context, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, s.load, onSnapshot, onError), nil
}

// Create implements store.DocumentStore.
func (s *Store) Create(ctx context.Context, fields domain.AppFields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewWriteError(OpCreate, "", err)
	}

	s.mu.Lock()
	if err := s.takeFailure(OpCreate); err != nil {
		s.mu.Unlock()
		return "", domain.NewWriteError(OpCreate, "", err)
	}
	app := newApp(fields, s.clock)
	s.apps[app.ID] = app
	s.mu.Unlock()

	s.hub.Notify()
	return app.ID, nil
}

// Update implements store.DocumentStore.
func (s *Store) Update(ctx context.Context, id string, patch domain.AppPatch) error {
	if err := ctx.Err(); err != nil {
		return domain.NewWriteError(OpUpdate, id, err)
	}

	s.mu.Lock()
	if err := s.takeFailure(OpUpdate); err != nil {
		s.mu.Unlock()
		return domain.NewWriteError(OpUpdate, id, err)
	}
	app, ok := s.apps[id]
	if !ok {
		s.mu.Unlock()
		return domain.NewWriteError(OpUpdate, id, domain.ErrNotFound)
	}
	updated := *app
	fields := patch.ApplyTo(app.Fields())
	updated.Name, updated.URL, updated.Description = fields.Name, fields.URL, fields.Description
	updated.Category, updated.Image = fields.Category, fields.Image
	stamp := s.clock.Stamp()
	updated.UpdatedAt = &stamp
	s.apps[id] = &updated
	s.mu.Unlock()

	s.hub.Notify()
	return nil
}

// Delete implements store.DocumentStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewWriteError(OpDelete, id, err)
	}

	s.mu.Lock()
	if err := s.takeFailure(OpDelete); err != nil {
		s.mu.Unlock()
		return domain.NewWriteError(OpDelete, id, err)
	}
	_, existed := s.apps[id]
	delete(s.apps, id)
	s.mu.Unlock()

	if existed {
		s.hub.Notify()
	}
	return nil
}

// BatchCreate implements store.DocumentStore. The emptiness check and the
// inserts happen under one lock.
func (s *Store) BatchCreate(ctx context.Context, fields []domain.AppFields) error {
	if err := ctx.Err(); err != nil {
		return domain.NewWriteError(OpBatch, "", err)
	}

	s.mu.Lock()
	if err := s.takeFailure(OpBatch); err != nil {
		s.mu.Unlock()
		return domain.NewWriteError(OpBatch, "", err)
	}
	if len(s.apps) > 0 {
		s.mu.Unlock()
		return domain.NewWriteError(OpBatch, "", domain.ErrAlreadySeeded)
	}
	for _, f := range fields {
		app := newApp(f, s.clock)
		s.apps[app.ID] = app
	}
	s.mu.Unlock()

	s.hub.Notify()
	return nil
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apps)
}

// Close ends every subscription.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) load(context.Context) ([]domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(OpSubscribe); err != nil {
		return nil, err
	}

	apps := make([]domain.App, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.Before(apps[j].CreatedAt)
		}
		return apps[i].ID < apps[j].ID
	})
	return apps, nil
}

func newApp(f domain.AppFields, clock *store.Clock) *domain.App {
	return &domain.App{
		ID:          uuid.NewString(),
		Name:        f.Name,
		URL:         f.URL,
		Description: f.Description,
		Category:    f.Category,
		Image:       f.Image,
		CreatedAt:   clock.Stamp(),
	}
}
