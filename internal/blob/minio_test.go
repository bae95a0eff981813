package blob

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/logger"
)

type mockPutter struct {
	mock.Mock
}

func (m *mockPutter) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(reader)
	args := m.Called(bucket, object, string(body), size, opts.ContentType)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

var keyPattern = regexp.MustCompile(`^app-previews/1700000000000-[0-9a-f]{8}\.(png|jpg|webp)$`)

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	tests := []struct {
		filename string
		wantExt  string
	}{
		{"shot.PNG", "png"},
		{"photo.jpg", "jpg"},
		{"noext", "png"},
		{"", "png"},
		{"a.b.webp", "webp"},
		{"shot.p?ng", "png"},
		{"a.p#g", "png"},
		{"x.j%2Fpg", "png"},
		{"clip.verylongext", "png"},
		{"trailingdot.", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := ObjectPath("", now, tt.filename)
			assert.Regexp(t, keyPattern, got)
			assert.Equal(t, "."+tt.wantExt, got[len(got)-len(tt.wantExt)-1:])
		})
	}

	assert.NotEqual(t, ObjectPath("x", now, "a.png"), ObjectPath("x", now, "a.png"), "paths are unique")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jpeg", Extension("Photo.JPEG"))
	assert.Equal(t, "mp4", Extension("clip.mp4"))
	assert.Equal(t, "png", Extension("evil.pn g"))
	assert.Equal(t, "png", Extension("../../etc/passwd"))
	assert.Equal(t, "png", Extension("a.b/c"))
}

func TestUploadAsset(t *testing.T) {
	putter := &mockPutter{}
	s := newStore(putter, Config{Endpoint: "cdn.local:9000", Bucket: "vault"}, logger.Nop())
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	putter.On("PutObject", "vault", mock.MatchedBy(keyPattern.MatchString), "data", int64(4), "image/png").
		Return(minio.UploadInfo{Size: 4}, nil).Once()

	url, err := s.UploadAsset(context.Background(), []byte("data"), "", "shot.png")
	require.NoError(t, err)
	assert.Regexp(t, `^http://cdn\.local:9000/vault/app-previews/1700000000000-[0-9a-f]{8}\.png$`, url)
	putter.AssertExpectations(t)
}

func TestUploadAssetFailure(t *testing.T) {
	putter := &mockPutter{}
	s := newStore(putter, Config{Endpoint: "cdn.local", Bucket: "vault", UseSSL: true}, logger.Nop())

	putter.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("Access Denied.")).Once()

	_, err := s.UploadAsset(context.Background(), []byte("x"), "image/jpeg", "a.jpg")
	require.Error(t, err)

	var ue *domain.UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "upload failed: Access Denied.", err.Error())
}

func TestUploadAssetRejectsEmpty(t *testing.T) {
	putter := &mockPutter{}
	s := newStore(putter, Config{Endpoint: "cdn.local", Bucket: "vault"}, logger.Nop())

	_, err := s.UploadAsset(context.Background(), nil, "", "a.png")
	require.Error(t, err)
	putter.AssertNotCalled(t, "PutObject")
}

func TestPublicURL(t *testing.T) {
	s := newStore(&mockPutter{}, Config{
		Endpoint:      "minio:9000",
		Bucket:        "vault",
		PublicBaseURL: "https://files.example.com/",
	}, logger.Nop())
	assert.Equal(t, "https://files.example.com/vault/app-previews/a.png", s.PublicURL("app-previews/a.png"))

	s = newStore(&mockPutter{}, Config{Endpoint: "minio:9000", Bucket: "vault", UseSSL: true, Namespace: "/shots/"}, logger.Nop())
	assert.Equal(t, "https://minio:9000/vault/x", s.PublicURL("x"))
	assert.Equal(t, "shots", s.namespace)
}
