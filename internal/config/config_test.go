package config

import (
	"strings"
	"testing"
	"time"
)

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("%s should have panicked", name)
		}
	}()
	fn()
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APPVAULT_STORE", "memory")

	cfg := Load()
	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis settings loaded for memory backend: %+v", cfg.Redis)
	}
	if cfg.Minio.Enabled() {
		t.Error("uploads should be disabled without an endpoint")
	}
	if cfg.ScreenshotEndpoint != "https://api.microlink.io/" {
		t.Errorf("ScreenshotEndpoint = %q", cfg.ScreenshotEndpoint)
	}
	if !cfg.SeedEnabled || cfg.SeedFile != "" {
		t.Errorf("seed defaults = %v/%q, want enabled with embedded catalog", cfg.SeedEnabled, cfg.SeedFile)
	}
	if cfg.ProbeTimeout != 20*time.Second {
		t.Errorf("ProbeTimeout = %v, want 20s", cfg.ProbeTimeout)
	}
}

func TestLoadRedisBackend(t *testing.T) {
	t.Setenv("APPVAULT_STORE", "REDIS")
	t.Setenv("APPVAULT_REDIS_ADDR", "localhost:6379")
	t.Setenv("APPVAULT_REDIS_DB", "2")
	t.Setenv("REDIS_POOL_SIZE", "4")

	cfg := Load()
	if cfg.Store.Backend != StoreRedis {
		t.Fatalf("Store.Backend = %q, want redis", cfg.Store.Backend)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 || cfg.Redis.PoolSize != 4 {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Redis.HealthInterval != 5*time.Second {
		t.Errorf("Redis.HealthInterval = %v, want 5s", cfg.Redis.HealthInterval)
	}
	if cfg.Redis.Prefix != "appvault" {
		t.Errorf("Redis.Prefix = %q, want appvault", cfg.Redis.Prefix)
	}
}

func TestLoadRedisBackendRequiresAddr(t *testing.T) {
	t.Setenv("APPVAULT_STORE", "redis")
	t.Setenv("APPVAULT_REDIS_ADDR", "")
	expectPanic(t, "Load()", func() { Load() })
}

func TestLoadMinioRequiresCredentials(t *testing.T) {
	t.Setenv("APPVAULT_STORE", "memory")
	t.Setenv("APPVAULT_MINIO_ENDPOINT", "minio:9000")
	expectPanic(t, "Load()", func() { Load() })

	t.Setenv("APPVAULT_MINIO_ACCESS_KEY", "access")
	t.Setenv("APPVAULT_MINIO_SECRET_KEY", "secret")
	cfg := Load()
	if !cfg.Minio.Enabled() || cfg.Minio.Namespace != "app-previews" {
		t.Errorf("Minio = %+v", cfg.Minio)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		Redis: Redis{User: "default", Password: "hunter2"},
		Minio: Minio{AccessKey: "AKIA", SecretKey: "s3cr3t"},
	}
	out := cfg.Redacted()
	dump := strings.Join([]string{out.Redis.User, out.Redis.Password, out.Minio.AccessKey, out.Minio.SecretKey}, " ")
	for _, secret := range []string{"default", "hunter2", "AKIA", "s3cr3t"} {
		if strings.Contains(dump, secret) {
			t.Errorf("Redacted() leaks %q", secret)
		}
	}
	if cfg.Redis.Password != "hunter2" {
		t.Error("Redacted() modified the original")
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")
	if got := requireEnv("TEST_VAR"); got != "test_value" {
		t.Errorf("requireEnv() = %v, want test_value", got)
	}
	expectPanic(t, "requireEnv()", func() { requireEnv("TEST_VAR_MISSING") })
}

func TestOneOf(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		expected  string
		wantPanic bool
	}{
		{"default", "", "redis", false},
		{"case insensitive", " SQLite ", "sqlite", false},
		{"unknown", "postgres", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ONE_OF", tt.value)
			if tt.wantPanic {
				expectPanic(t, "oneOf()", func() { oneOf("TEST_ONE_OF", "redis", "redis", "sqlite") })
				return
			}
			if got := oneOf("TEST_ONE_OF", "redis", "redis", "sqlite"); got != tt.expected {
				t.Errorf("oneOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{"valid duration", "5s", time.Second, 5 * time.Second},
		{"invalid duration uses default", "invalid", 10 * time.Second, 10 * time.Second},
		{"missing variable uses default", "", 15 * time.Second, 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := mustDuration("TEST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{"true value", "true", false, true},
		{"false value", "false", true, false},
		{"invalid value uses default", "invalid", true, true},
		{"missing variable uses default", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := mustBool("TEST_BOOL", tt.def); got != tt.expected {
				t.Errorf("mustBool() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` 10.0.0.0/8, "192.168.1.4" ,, '::1'`)
	want := []string{"10.0.0.0/8", "192.168.1.4", "::1"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
