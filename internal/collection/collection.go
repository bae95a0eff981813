// Package collection mirrors the remote app collection into memory and
// routes writes through the document store.
//
// The mirror is never edited locally. Every snapshot from the store
// replaces it wholesale, so a write becomes visible only once the store
// has announced it.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/imageurl"
	"github.com/MrSnakeDoc/appvault/internal/logger"
	"github.com/MrSnakeDoc/appvault/internal/store"
)

// State is the lifecycle state of the mirror.
type State int

const (
	// StateLoading is the initial state, before the first snapshot.
	StateLoading State = iota
	// StateReady means the mirror holds the latest snapshot.
	StateReady
	// StateError means the subscription or the seed failed. The mirror keeps
	// its last contents.
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("collection already started")

// Collection is the synchronized mirror of the app catalog.
type Collection struct {
	docs  store.DocumentStore
	blobs store.BlobStore // nil disables uploads
	seed  []domain.AppFields
	log   logger.Logger

	seeded atomic.Bool

	mu      sync.RWMutex
	apps    []domain.App
	state   State
	err     error
	changed chan struct{}

	life    sync.Mutex
	started bool
	cancel  context.CancelFunc
	unsub   store.Unsubscribe
}

// New creates a collection over docs. seed is written once when the first
// snapshot is empty; a nil seed disables seeding. blobs may be nil.
func New(docs store.DocumentStore, blobs store.BlobStore, seed []domain.AppFields, log logger.Logger) *Collection {
	return &Collection{
		docs:    docs,
		blobs:   blobs,
		seed:    seed,
		log:     log,
		changed: make(chan struct{}),
	}
}

// Start opens the subscription. It may be called once.
func (c *Collection) Start(ctx context.Context) error {
	c.life.Lock()
	defer c.life.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	unsub, err := c.docs.SubscribeOrdered(runCtx,
		func(apps []domain.App, empty bool) { c.onSnapshot(runCtx, apps, empty) },
		c.onError,
	)
	if err != nil {
		cancel()
		c.onError(err)
		return err
	}

	c.cancel = cancel
	c.unsub = unsub
	c.log.Info("collection started", logger.Int("seed_size", len(c.seed)))
	return nil
}

// Stop ends the subscription. It is safe to call more than once and before
// Start. Writes already in flight are not canceled.
func (c *Collection) Stop() {
	c.life.Lock()
	defer c.life.Unlock()

	if c.unsub == nil {
		return
	}
	c.cancel()
	c.unsub()
	c.unsub, c.cancel = nil, nil
	c.log.Info("collection stopped")
}

func (c *Collection) onSnapshot(ctx context.Context, apps []domain.App, empty bool) {
	if empty && len(c.seed) > 0 && c.seeded.CompareAndSwap(false, true) {
		c.seedOnce(ctx)
		return
	}
	c.replace(apps)
}

// seedOnce writes the default catalog. The snapshot caused by the write
// populates the mirror.
func (c *Collection) seedOnce(ctx context.Context) {
	c.log.Info("collection empty, writing seed catalog", logger.Int("count", len(c.seed)))

	err := c.docs.BatchCreate(ctx, c.seed)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAlreadySeeded):
		c.log.Debug("seed skipped, collection no longer empty")
	case ctx.Err() != nil:
	default:
		c.log.Error("seed failed", logger.Error(err))
		c.setFailed(err)
	}
}

func (c *Collection) replace(apps []domain.App) {
	mirror := make([]domain.App, 0, len(apps))
	seen := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if _, dup := seen[app.ID]; dup {
			continue
		}
		seen[app.ID] = struct{}{}
		mirror = append(mirror, app)
	}

	c.mu.Lock()
	c.apps = mirror
	c.state = StateReady
	c.err = nil
	c.broadcastLocked()
	c.mu.Unlock()

	c.log.Debug("mirror replaced", logger.Int("count", len(mirror)))
}

func (c *Collection) onError(err error) {
	var se *domain.SubscriptionError
	if !errors.As(err, &se) {
		err = &domain.SubscriptionError{Err: err}
	}
	c.log.Error("subscription failed", logger.Error(err))
	c.setFailed(err)
}

func (c *Collection) setFailed(err error) {
	c.mu.Lock()
	c.state = StateError
	c.err = err
	c.broadcastLocked()
	c.mu.Unlock()
}

// broadcastLocked wakes every Changes waiter. c.mu must be held.
func (c *Collection) broadcastLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// Apps returns a copy of the mirror ordered by CreatedAt ascending.
func (c *Collection) Apps() []domain.App {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.App, len(c.apps))
	copy(out, c.apps)
	return out
}

// App returns the mirrored record with the given id.
func (c *Collection) App(id string) (domain.App, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, app := range c.apps {
		if app.ID == id {
			return app, true
		}
	}
	return domain.App{}, false
}

// State returns the current lifecycle state.
func (c *Collection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Loading reports whether no snapshot or failure has been seen yet.
func (c *Collection) Loading() bool {
	return c.State() == StateLoading
}

// Err returns the failure that put the collection in StateError.
func (c *Collection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Changes returns a channel closed at the next mirror or state change.
func (c *Collection) Changes() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

// Create normalizes and validates the input, then stores it. An upload is
// only sent to the blob store once the record is known to be valid, and its
// URL becomes the image.
func (c *Collection) Create(ctx context.Context, in domain.AppInput) (string, error) {
	fields := in.AppFields
	fields.Name = strings.TrimSpace(fields.Name)
	fields.URL = imageurl.NormalizeURL(fields.URL)
	fields.Category = fields.Category.OrDefault()

	// The image never fails validation, so this holds for any upload too.
	if err := fields.Validate(); err != nil {
		return "", err
	}

	if in.Upload != nil {
		url, err := c.upload(ctx, in.Upload)
		if err != nil {
			return "", err
		}
		fields.Image = url
	}
	fields.Image = imageurl.ResolveDisplayImage(fields.Image, fields.URL)

	id, err := c.docs.Create(ctx, fields)
	if err != nil {
		return "", displayError("create", "", err)
	}
	c.log.Info("app created", logger.String("app_id", id), logger.String("url", fields.URL))
	return id, nil
}

// Update applies patch to the record. Fields missing from the patch keep
// the mirrored values. When the URL or the image changes, the image is
// resolved again against the merged record. An empty patch still reaches
// the store, which refreshes updatedAt.
func (c *Collection) Update(ctx context.Context, id string, patch domain.AppPatch, upload *domain.Asset) error {
	if id == "" {
		return domain.NewWriteError("update", id, domain.ErrNotFound)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.URL != nil {
		url := imageurl.NormalizeURL(*patch.URL)
		patch.URL = &url
	}

	current, known := c.App(id)
	base := domain.AppFields{Name: "-", URL: "-", Category: domain.DefaultCategory}
	if known {
		base = current.Fields()
	}
	// Not mirrored yet: the placeholder checks only what the patch sets.
	if err := patch.ApplyTo(base).Validate(); err != nil {
		return err
	}

	if upload != nil {
		url, err := c.upload(ctx, upload)
		if err != nil {
			return err
		}
		patch.Image = &url
	}

	switch {
	case known && (patch.Image != nil || patch.URL != nil):
		merged := patch.ApplyTo(current.Fields())
		img := imageurl.ResolveDisplayImage(merged.Image, merged.URL)
		patch.Image = &img
	case !known && patch.Image != nil:
		img := ""
		if patch.URL != nil {
			img = imageurl.ResolveDisplayImage(*patch.Image, *patch.URL)
		} else if imageurl.IsPersistentImageReference(*patch.Image) {
			img = imageurl.OptimizeImageURL(*patch.Image)
		}
		patch.Image = &img
	}

	if err := c.docs.Update(ctx, id, patch); err != nil {
		return displayError("update", id, err)
	}
	c.log.Info("app updated", logger.String("app_id", id), logger.Bool("touch_only", patch.IsEmpty()))
	return nil
}

// Delete removes the record.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if err := c.docs.Delete(ctx, id); err != nil {
		return displayError("delete", id, err)
	}
	c.log.Info("app deleted", logger.String("app_id", id))
	return nil
}

func (c *Collection) upload(ctx context.Context, a *domain.Asset) (string, error) {
	if c.blobs == nil {
		return "", &domain.UploadError{Err: domain.ErrUploadUnavailable}
	}
	url, err := c.blobs.UploadAsset(ctx, a.Data, a.ContentType, a.Filename)
	if err != nil {
		var ue *domain.UploadError
		if !errors.As(err, &ue) {
			err = &domain.UploadError{Err: err}
		}
		c.log.Warn("upload failed", logger.Error(err))
		return "", err
	}
	return url, nil
}

// displayError turns an adapter failure into a WriteError whose message has
// the provider prefix removed.
func displayError(op, id string, err error) error {
	var we *domain.WriteError
	if !errors.As(err, &we) {
		we = domain.NewWriteError(op, id, err)
	}
	return we.ForDisplay()
}
