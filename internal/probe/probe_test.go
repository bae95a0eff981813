package probe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/logger"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFetchScreenshot(t *testing.T) {
	valid := pngBytes(t)

	tests := []struct {
		name        string
		status      int
		contentType string
		body        []byte
		wantReason  string
	}{
		{"valid png", http.StatusOK, "image/png", valid, ""},
		{"server error", http.StatusBadGateway, "image/png", valid, "status 502"},
		{"not found", http.StatusNotFound, "text/plain", []byte("nope"), "status 404"},
		{"html page", http.StatusOK, "text/html; charset=utf-8", []byte("<html></html>"), "unexpected content type"},
		{"truncated png", http.StatusOK, "image/png", valid[:20], "malformed image"},
		{"text labeled as image", http.StatusOK, "image/jpeg", []byte("definitely not a jpeg"), "malformed image"},
		{"empty body", http.StatusOK, "image/png", nil, "empty image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.RawQuery
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer ts.Close()

			p := New(ts.URL+"/", time.Second, logger.Nop())
			got, err := p.FetchScreenshot(context.Background(), "myapp.io")

			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if !strings.HasPrefix(got, ts.URL+"/?url=https%3A%2F%2Fmyapp.io") {
					t.Errorf("got %q, want probe URL for https://myapp.io", got)
				}
				if !strings.Contains(gotQuery, "screenshot=true") || !strings.Contains(gotQuery, "meta=false") {
					t.Errorf("query %q misses screenshot parameters", gotQuery)
				}
				return
			}

			var pe *domain.ProbeError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *domain.ProbeError", err)
			}
			if !strings.HasPrefix(pe.Reason, tt.wantReason) {
				t.Errorf("reason = %q, want prefix %q", pe.Reason, tt.wantReason)
			}
			if pe.URL != "https://myapp.io" {
				t.Errorf("URL = %q, want normalized target", pe.URL)
			}
			if got != "" {
				t.Errorf("got %q on failure, want empty", got)
			}
		})
	}
}

func TestFetchScreenshotFollowsRedirect(t *testing.T) {
	valid := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/image.png", http.StatusFound)
	})
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(valid)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	p := New(ts.URL+"/render", time.Second, logger.Nop())
	if _, err := p.FetchScreenshot(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchScreenshotEmptyURLMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer ts.Close()

	p := New(ts.URL+"/", time.Second, logger.Nop())
	_, err := p.FetchScreenshot(context.Background(), "   ")

	var pe *domain.ProbeError
	if !errors.As(err, &pe) || pe.Reason != "empty url" {
		t.Fatalf("error = %v, want empty url ProbeError", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestFetchScreenshotNetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := ts.URL + "/"
	ts.Close()

	p := New(endpoint, time.Second, logger.Nop())
	_, err := p.FetchScreenshot(context.Background(), "example.com")

	var pe *domain.ProbeError
	if !errors.As(err, &pe) || pe.Reason != "request failed" {
		t.Fatalf("error = %v, want request failed ProbeError", err)
	}
}

func TestFetchScreenshotCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(ts.URL+"/", time.Second, logger.Nop())
	_, err := p.FetchScreenshot(ctx, "example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
