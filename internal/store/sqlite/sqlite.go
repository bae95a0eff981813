// Package sqlite is a single-node document store on SQLite through gorm.
// Change notifications are in-process: only subscribers of the same Store
// see writes as they happen.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/logger"
	"github.com/MrSnakeDoc/appvault/internal/store"
	"github.com/MrSnakeDoc/appvault/internal/store/notify"
)

// appRow is the table layout. The timestamp fields are not
// named CreatedAt/UpdatedAt so gorm does not stamp them itself.
type appRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"not null"`
	URL         string `gorm:"not null"`
	Description string
	Category    string `gorm:"index;not null"`
	Image       string
	CreatedOn   time.Time  `gorm:"column:created_at;index;not null"`
	ModifiedOn  *time.Time `gorm:"column:updated_at"`
}

func (appRow) TableName() string { return "apps" }

func (r appRow) toApp() domain.App {
	app := domain.App{
		ID:          r.ID,
		Name:        r.Name,
		URL:         r.URL,
		Description: r.Description,
		Category:    domain.Category(r.Category),
		Image:       r.Image,
		CreatedAt:   r.CreatedOn.UTC(),
	}
	if r.ModifiedOn != nil {
		t := r.ModifiedOn.UTC()
		app.UpdatedAt = &t
	}
	return app
}

func rowFrom(f domain.AppFields, createdAt time.Time) appRow {
	return appRow{
		ID:          uuid.NewString(),
		Name:        f.Name,
		URL:         f.URL,
		Description: f.Description,
		Category:    string(f.Category),
		Image:       f.Image,
		CreatedOn:   createdAt,
	}
}

// Store implements store.DocumentStore on a gorm database.
type Store struct {
	db    *gorm.DB
	clock *store.Clock
	hub   *notify.Hub
}

var _ store.DocumentStore = (*Store)(nil)

// Open opens (creating if needed) the database at dsn and migrates it.
func Open(dsn string, log logger.Logger) (*Store, error) {
	if dsn == "" {
		dsn = "appvault.db"
	}
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(gormWriter{log}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&appRow{}); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Store{
		db:    db,
		clock: store.NewClock(nil),
		hub:   notify.NewHub(),
	}, nil
}

// Close ends every subscription and closes the database.
func (s *Store) Close() error {
	s.hub.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SubscribeOrdered implements store.DocumentStore.
func (s *Store) SubscribeOrdered(ctx context.Context, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	return s.hub.Subscribe(ctx, s.List, onSnapshot, onError), nil
}

// List returns every app ordered by CreatedAt, then id.
func (s *Store) List(ctx context.Context) ([]domain.App, error) {
	var rows []appRow
	if err := s.db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite: list apps: %w", err)
	}
	apps := make([]domain.App, len(rows))
	for i, r := range rows {
		apps[i] = r.toApp()
	}
	return apps, nil
}

// Create implements store.DocumentStore.
func (s *Store) Create(ctx context.Context, fields domain.AppFields) (string, error) {
	row := rowFrom(fields, s.clock.Stamp())
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", domain.NewWriteError("create", "", fmt.Errorf("sqlite: %w", err))
	}
	s.hub.Notify()
	return row.ID, nil
}

// Update implements store.DocumentStore.
func (s *Store) Update(ctx context.Context, id string, patch domain.AppPatch) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row appRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("sqlite: %w", err)
		}

		f := patch.ApplyTo(row.toApp().Fields())
		now := s.clock.Stamp()
		if !now.After(row.CreatedOn) {
			now = row.CreatedOn.Add(time.Microsecond)
		}

		err := tx.Model(&appRow{}).Where("id = ?", id).Updates(map[string]any{
			"name":        f.Name,
			"url":         f.URL,
			"description": f.Description,
			"category":    string(f.Category),
			"image":       f.Image,
			"updated_at":  now,
		}).Error
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.NewWriteError("update", id, err)
	}
	s.hub.Notify()
	return nil
}

// Delete implements store.DocumentStore.
func (s *Store) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&appRow{})
	if res.Error != nil {
		return domain.NewWriteError("delete", id, fmt.Errorf("sqlite: %w", res.Error))
	}
	if res.RowsAffected > 0 {
		s.hub.Notify()
	}
	return nil
}

// BatchCreate implements store.DocumentStore. The emptiness check and the
// inserts share one transaction.
func (s *Store) BatchCreate(ctx context.Context, fields []domain.AppFields) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&appRow{}).Count(&n).Error; err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		if n > 0 {
			return domain.ErrAlreadySeeded
		}
		if len(fields) == 0 {
			return nil
		}

		base := s.clock.Stamp()
		rows := make([]appRow, len(fields))
		for i, f := range fields {
			rows[i] = rowFrom(f, base.Add(time.Duration(i)*time.Microsecond))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.NewWriteError("batch", "", err)
	}
	s.hub.Notify()
	return nil
}

// gormWriter routes gorm's own log lines into the application logger.
type gormWriter struct {
	log logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(format, args...)
}

// ensureDir creates the parent directory of a file DSN.
func ensureDir(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlite: create dir %q: %w", dir, err)
	}
	return nil
}
