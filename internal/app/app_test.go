package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/appvault/internal/collection"
	"github.com/MrSnakeDoc/appvault/internal/config"
	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/logger"
)

func testConfig(backend string) *config.Config {
	return &config.Config{
		ListenPort:      ":0",
		ShutdownTimeout: time.Second,
		RequestTimeout:  5 * time.Second,
		Store:           config.Store{Backend: backend},
		SeedEnabled:     true,
		RateBurst:       5,
		RatePerMin:      60,
	}
}

func TestOpenBackendMemory(t *testing.T) {
	be, err := openBackend(context.Background(), testConfig(config.StoreMemory), logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, be.docs)
	assert.Nil(t, be.redisClient)
	closeAll(be.closers, logger.Nop())
}

func TestOpenBackendSQLite(t *testing.T) {
	cfg := testConfig(config.StoreSQLite)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "data", "apps.db")

	be, err := openBackend(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer closeAll(be.closers, logger.Nop())

	_, err = os.Stat(cfg.Store.SQLitePath)
	assert.NoError(t, err)
}

func TestOpenBackendRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(config.StoreRedis)
	cfg.Redis = config.Redis{
		Addr:           mr.Addr(),
		Prefix:         "test",
		DialTimeout:    time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		PoolSize:       2,
		ConnectTimeout: 2 * time.Second,
		RetryInterval:  10 * time.Millisecond,
		MaxWait:        50 * time.Millisecond,
		PingTimeout:    time.Second,
	}

	be, err := openBackend(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer closeAll(be.closers, logger.Nop())
	assert.NotNil(t, be.redisClient)

	id, err := be.docs.Create(context.Background(), domain.AppFields{Name: "x", URL: "https://x.io", Category: domain.CategoryOther})
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:app:"+id))
}

func TestOpenBackendUnknown(t *testing.T) {
	_, err := openBackend(context.Background(), testConfig("postgres"), logger.Nop())
	assert.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	cfg := testConfig(config.StoreMemory)

	apps, err := loadSeed(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Len(t, apps, 6)

	cfg.SeedEnabled = false
	apps, err = loadSeed(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Nil(t, apps)

	cfg.SeedEnabled = true
	cfg.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = loadSeed(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestBuildSeedsEmptyCollection(t *testing.T) {
	a, err := build(context.Background(), testConfig(config.StoreMemory), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, a.collection.Start(context.Background()))
	defer a.collection.Stop()

	require.Eventually(t, func() bool {
		return a.collection.State() == collection.StateReady && len(a.collection.Apps()) == 6
	}, 2*time.Second, 10*time.Millisecond)
}
