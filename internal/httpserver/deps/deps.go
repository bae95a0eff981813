package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/appvault/internal/collection"
	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/logger"
)

// Catalog is what the handlers need from the synchronized collection.
type Catalog interface {
	Apps() []domain.App
	App(id string) (domain.App, bool)
	State() collection.State
	Err() error
	Create(ctx context.Context, in domain.AppInput) (string, error)
	Update(ctx context.Context, id string, patch domain.AppPatch, upload *domain.Asset) error
	Delete(ctx context.Context, id string) error
}

// ScreenshotProber previews a screenshot before it is saved on a record.
type ScreenshotProber interface {
	FetchScreenshot(ctx context.Context, rawURL string) (string, error)
}

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedCIDRS   []string         // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateBurst      int              // write endpoints: bucket size per client
	RatePerMin     int              // write endpoints: refill per minute
	StoreBackend   string           // redis | sqlite | memory, reported by /infra
	Catalog        Catalog          // synchronized app collection
	Prober         ScreenshotProber // screenshot preview
	UploadsEnabled bool             // false when no blob store is configured
	MaxUploadBytes int64            // multipart body limit
	RedisClient    *redis.Client    // nil unless the redis backend is used
}
