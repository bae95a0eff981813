package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/store"
)

// Store keeps app documents in Redis.
//
// Each app is a JSON string under Keys.App. Keys.Index orders ids by
// creation time and every committed write is announced on Keys.Changes so
// that subscribers can reload. Timestamps come from the Redis server clock.
type Store struct {
	client         *redis.Client
	keys           Keys
	healthInterval time.Duration
}

var _ store.DocumentStore = (*Store)(nil)

// DefaultHealthInterval is how often a subscription pings the server.
const DefaultHealthInterval = 5 * time.Second

// Option configures a Store.
type Option func(*Store)

// WithHealthInterval sets how often subscriptions ping the server to
// detect an outage. Non-positive values keep the default.
func WithHealthInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.healthInterval = d
		}
	}
}

// NewStore creates a store on client using keys rooted at prefix.
func NewStore(client *redis.Client, prefix string, opts ...Option) *Store {
	s := &Store{
		client:         client,
		keys:           NewKeys(prefix),
		healthInterval: DefaultHealthInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements store.DocumentStore.
func (s *Store) Create(ctx context.Context, fields domain.AppFields) (string, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return "", domain.NewWriteError("create", "", err)
	}

	app := newApp(fields, now)
	data, err := json.Marshal(app)
	if err != nil {
		return "", domain.NewWriteError("create", "", fmt.Errorf("marshal app: %w", err))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keys.App(app.ID), data, 0)
		pipe.ZAdd(ctx, s.keys.Index(), redis.Z{Score: score(app.CreatedAt), Member: app.ID})
		pipe.Publish(ctx, s.keys.Changes(), app.ID)
		return nil
	})
	if err != nil {
		return "", domain.NewWriteError("create", "", err)
	}
	return app.ID, nil
}

// Update implements store.DocumentStore. The read-merge-write runs under
// WATCH; a concurrent write to the same record fails the update instead of
// being overwritten.
func (s *Store) Update(ctx context.Context, id string, patch domain.AppPatch) error {
	key := s.keys.App(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var app domain.App
		if err := json.Unmarshal(data, &app); err != nil {
			return fmt.Errorf("unmarshal app %s: %w", id, err)
		}

		now, err := s.serverTime(ctx)
		if err != nil {
			return err
		}
		applyPatch(&app, patch, now)

		data, err = json.Marshal(app)
		if err != nil {
			return fmt.Errorf("marshal app %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, s.keys.Changes(), id)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return domain.NewWriteError("update", id, err)
	}
	return nil
}

// Delete implements store.DocumentStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.App(id))
		pipe.ZRem(ctx, s.keys.Index(), id)
		pipe.Publish(ctx, s.keys.Changes(), id)
		return nil
	})
	if err != nil {
		return domain.NewWriteError("delete", id, err)
	}
	return nil
}

// BatchCreate implements store.DocumentStore. The index is watched so the
// batch only commits if the collection was still empty; records get
// consecutive microsecond timestamps in input order.
func (s *Store) BatchCreate(ctx context.Context, fields []domain.AppFields) error {
	index := s.keys.Index()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.ZCard(ctx, index).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadySeeded
		}

		base, err := s.serverTime(ctx)
		if err != nil {
			return err
		}

		apps := make([]domain.App, len(fields))
		docs := make([][]byte, len(fields))
		for i, f := range fields {
			apps[i] = newApp(f, base.Add(time.Duration(i)*time.Microsecond))
			if docs[i], err = json.Marshal(apps[i]); err != nil {
				return fmt.Errorf("marshal app %d: %w", i, err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, app := range apps {
				pipe.Set(ctx, s.keys.App(app.ID), docs[i], 0)
				pipe.ZAdd(ctx, index, redis.Z{Score: score(app.CreatedAt), Member: app.ID})
			}
			pipe.Publish(ctx, s.keys.Changes(), "batch")
			return nil
		})
		return err
	}, index)
	if err != nil {
		return domain.NewWriteError("batch", "", err)
	}
	return nil
}

// List returns every app ordered by CreatedAt ascending. Ids present in the
// index whose document has vanished are skipped.
func (s *Store) List(ctx context.Context) ([]domain.App, error) {
	ids, err := s.client.ZRange(ctx, s.keys.Index(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read app index: %w", err)
	}
	if len(ids) == 0 {
		return []domain.App{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keys.App(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read apps: %w", err)
	}

	apps := make([]domain.App, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var app domain.App
		if err := json.Unmarshal([]byte(raw), &app); err != nil {
			return nil, fmt.Errorf("failed to unmarshal app %s: %w", ids[i], err)
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// serverTime reads the Redis clock, in UTC with microsecond precision.
func (s *Store) serverTime(ctx context.Context) (time.Time, error) {
	t, err := s.client.Time(ctx).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read server time: %w", err)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

func newApp(f domain.AppFields, createdAt time.Time) domain.App {
	return domain.App{
		ID:          uuid.NewString(),
		Name:        f.Name,
		URL:         f.URL,
		Description: f.Description,
		Category:    f.Category,
		Image:       f.Image,
		CreatedAt:   createdAt,
	}
}

// applyPatch merges patch into app and stamps UpdatedAt, never earlier
// than the previous stamp.
func applyPatch(app *domain.App, patch domain.AppPatch, now time.Time) {
	f := patch.ApplyTo(app.Fields())
	app.Name, app.URL, app.Description = f.Name, f.URL, f.Description
	app.Category, app.Image = f.Category, f.Image

	last := app.CreatedAt
	if app.UpdatedAt != nil && app.UpdatedAt.After(last) {
		last = *app.UpdatedAt
	}
	if !now.After(last) {
		now = last.Add(time.Microsecond)
	}
	app.UpdatedAt = &now
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
