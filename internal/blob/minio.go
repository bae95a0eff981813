// Package blob stores uploaded preview images in an S3-compatible bucket.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/logger"
	"github.com/MrSnakeDoc/appvault/internal/store"
)

// Config holds the connection and layout settings of the bucket.
type Config struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string

	// PublicBaseURL is what clients use to fetch objects. Defaults to the
	// endpoint with the scheme implied by UseSSL.
	PublicBaseURL string

	// Namespace is the folder uploads go to. Defaults to DefaultNamespace.
	Namespace string

	// PublicRead installs an anonymous read policy on Namespace.
	PublicRead bool
}

// objectPutter is the subset of *minio.Client used for uploads.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore implements store.BlobStore.
type MinioStore struct {
	client    objectPutter
	bucket    string
	namespace string
	baseURL   string
	now       func() time.Time
	log       logger.Logger
}

var _ store.BlobStore = (*MinioStore)(nil)

// NewMinioStore connects to the endpoint, creates the bucket when it does
// not exist and optionally makes the namespace publicly readable.
func NewMinioStore(ctx context.Context, cfg Config, log logger.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: init client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("minio: create bucket %q: %w", cfg.Bucket, err)
		}
		log.Info("bucket created", logger.String("bucket", cfg.Bucket))
	}

	s := newStore(client, cfg, log)
	if cfg.PublicRead {
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, readPolicy(cfg.Bucket, s.namespace)); err != nil {
			return nil, fmt.Errorf("minio: set read policy: %w", err)
		}
	}

	log.Info("blob store ready",
		logger.String("endpoint", cfg.Endpoint),
		logger.String("bucket", cfg.Bucket),
		logger.String("namespace", s.namespace))
	return s, nil
}

func newStore(client objectPutter, cfg Config, log logger.Logger) *MinioStore {
	ns := strings.Trim(cfg.Namespace, "/")
	if ns == "" {
		ns = DefaultNamespace
	}
	base := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		namespace: ns,
		baseURL:   base,
		now:       time.Now,
		log:       log,
	}
}

// UploadAsset implements store.BlobStore.
func (s *MinioStore) UploadAsset(ctx context.Context, data []byte, contentType, filename string) (string, error) {
	if len(data) == 0 {
		return "", &domain.UploadError{Err: fmt.Errorf("empty file")}
	}
	if contentType == "" {
		contentType = DefaultContentType
	}

	key := ObjectPath(s.namespace, s.now(), filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		s.log.Warn("upload failed", logger.String("key", key), logger.Error(err))
		return "", &domain.UploadError{Err: fmt.Errorf("minio: %w", err)}
	}

	s.log.Debug("asset uploaded",
		logger.String("key", key),
		logger.Int64("size", info.Size),
		logger.String("etag", info.ETag))
	return s.PublicURL(key), nil
}

// PublicURL returns the address clients fetch key from.
func (s *MinioStore) PublicURL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}

func readPolicy(bucket, namespace string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/%s/*"]}]}`, bucket, namespace)
}
