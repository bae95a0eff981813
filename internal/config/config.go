package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with APPVAULT_STORE.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline (ex: 30s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store Store
	Redis Redis
	Minio Minio

	ScreenshotEndpoint string        // probe rendering service
	ProbeTimeout       time.Duration // per probe (ex: 20s)

	SeedEnabled bool   // write the default catalog into an empty collection
	SeedFile    string // optional, empty = embedded catalog

	AllowedCIDRS []string // optional, restrict ops endpoints to these IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	RateBurst    int      // write endpoints: bucket size per client
	RatePerMin   int      // write endpoints: refill per minute
}

type Store struct {
	Backend    string // redis | sqlite | memory
	SQLitePath string // used when Backend == sqlite
}

type Redis struct {
	Addr           string        // ex: "localhost:6379"
	User           string        // optional
	Password       string        // optional
	DB             int           // Redis DB number
	Prefix         string        // key prefix (ex: "appvault")
	DialTimeout    time.Duration // ex: 5s
	ReadTimeout    time.Duration // ex: 3s
	WriteTimeout   time.Duration // ex: 3s
	PoolSize       int           // connection pool size
	ConnectTimeout time.Duration // total time to retry connecting (ex: 30s)
	RetryInterval  time.Duration // initial wait between retries (ex: 2s, grows exponentially)
	MaxWait        time.Duration // max wait between retries (ex: 10s)
	PingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	WarnThreshold  int           // warn after this many attempts
	HealthInterval time.Duration // subscription liveness ping (ex: 5s)
}

type Minio struct {
	Endpoint   string // host:port, empty = uploads disabled
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicURL  string // base URL clients fetch assets from, optional
	Namespace  string // folder for uploads (ex: "app-previews")
	PublicRead bool   // install an anonymous read policy on Namespace
}

// Enabled reports whether an upload backend is configured.
func (m Minio) Enabled() bool { return m.Endpoint != "" }

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("APPVAULT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("APPVAULT_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("APPVAULT_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("APPVAULT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("APPVAULT_PRETTY_LOG", true),

		Store: Store{
			Backend:    oneOf("APPVAULT_STORE", StoreRedis, StoreRedis, StoreSQLite, StoreMemory),
			SQLitePath: getenv("APPVAULT_SQLITE_PATH", "appvault.db"),
		},

		Minio: Minio{
			Endpoint:   getenv("APPVAULT_MINIO_ENDPOINT", ""),
			AccessKey:  getenv("APPVAULT_MINIO_ACCESS_KEY", ""),
			SecretKey:  getenv("APPVAULT_MINIO_SECRET_KEY", ""),
			Bucket:     getenv("APPVAULT_MINIO_BUCKET", "appvault"),
			Region:     getenv("APPVAULT_MINIO_REGION", ""),
			UseSSL:     mustBool("APPVAULT_MINIO_USE_SSL", false),
			PublicURL:  getenv("APPVAULT_ASSET_PUBLIC_URL", ""),
			Namespace:  getenv("APPVAULT_ASSET_NAMESPACE", "app-previews"),
			PublicRead: mustBool("APPVAULT_MINIO_PUBLIC_READ", true),
		},

		// Screenshot probe
		ScreenshotEndpoint: getenv("APPVAULT_SCREENSHOT_ENDPOINT", "https://api.microlink.io/"),
		ProbeTimeout:       mustDuration("APPVAULT_PROBE_TIMEOUT", 20*time.Second),

		// Seed
		SeedEnabled: mustBool("APPVAULT_SEED_ENABLED", true),
		SeedFile:    getenv("APPVAULT_SEED_FILE", ""),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("APPVAULT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("APPVAULT_TRUST_PROXY", true),
		RateBurst:    getenvInt("APPVAULT_RATE_BURST", 20),
		RatePerMin:   getenvInt("APPVAULT_RATE_PER_MIN", 60),
	}

	if cfg.Store.Backend == StoreRedis {
		cfg.Redis = loadRedis()
	}

	if cfg.Minio.Enabled() && (cfg.Minio.AccessKey == "" || cfg.Minio.SecretKey == "") {
		panic("❌ FATAL: APPVAULT_MINIO_ACCESS_KEY and APPVAULT_MINIO_SECRET_KEY are required when APPVAULT_MINIO_ENDPOINT is set")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

func loadRedis() Redis {
	return Redis{
		Addr:           requireEnv("APPVAULT_REDIS_ADDR"),
		User:           getenv("APPVAULT_REDIS_USERNAME", "default"),
		Password:       getenv("APPVAULT_REDIS_PASSWORD", ""),
		DB:             getenvInt("APPVAULT_REDIS_DB", 0),
		Prefix:         getenv("APPVAULT_REDIS_PREFIX", "appvault"),
		DialTimeout:    mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:    mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:   mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		PoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		ConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		MaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		PingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		WarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),
		HealthInterval: mustDuration("REDIS_HEALTH_INTERVAL", 5*time.Second),
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	const redacted = "***REDACTED***"
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	if c.Redis.User != "" {
		c.Redis.User = redacted
	}
	if c.Minio.SecretKey != "" {
		c.Minio.SecretKey = redacted
	}
	if c.Minio.AccessKey != "" {
		c.Minio.AccessKey = redacted
	}
	c.AllowedCIDRS = append([]string(nil), c.AllowedCIDRS...)
	return c
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

// oneOf returns the lowercased value of key, def when unset, and panics on
// a value outside allowed.
func oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(getenv(key, def)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", ")))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	return splitAndTrim(allowed)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
