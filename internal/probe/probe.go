// Package probe asks the screenshot service to render a page and checks
// that what comes back is a usable image.
package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/imageurl"
	"github.com/MrSnakeDoc/appvault/internal/logger"
	"github.com/MrSnakeDoc/appvault/internal/utils"
)

const (
	// DefaultTimeout bounds one probe, rendering included.
	DefaultTimeout = 20 * time.Second
	// MaxImageBytes is the largest screenshot accepted.
	MaxImageBytes = 10 << 20

	maxRedirects = 5
)

// Prober runs single-attempt screenshot probes. It never retries.
type Prober struct {
	client   *http.Client
	endpoint string
	log      logger.Logger
}

// New returns a prober for the rendering endpoint. An empty endpoint uses
// imageurl.DefaultProbeEndpoint and a zero timeout uses DefaultTimeout.
func New(endpoint string, timeout time.Duration, log logger.Logger) *Prober {
	if endpoint == "" {
		endpoint = imageurl.DefaultProbeEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: timeout,
			}).DialContext,
			TLSHandshakeTimeout: timeout,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DisableKeepAlives: true,
		},
		// The service answers with a redirect to the rendered image.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Prober{client: client, endpoint: endpoint, log: log}
}

// FetchScreenshot requests a screenshot of rawURL and returns the service
// URL once the response is confirmed to be a decodable image. Every failure
// is a *domain.ProbeError; an empty URL fails without a request.
func (p *Prober) FetchScreenshot(ctx context.Context, rawURL string) (string, error) {
	target := imageurl.NormalizeURL(rawURL)
	if target == "" {
		return "", &domain.ProbeError{URL: rawURL, Reason: "empty url"}
	}

	probeURL := imageurl.BuildProbeURL(p.endpoint, target)
	if err := p.check(ctx, probeURL); err != nil {
		err.URL = target
		p.log.Warn("screenshot probe failed",
			logger.String("url", target),
			logger.String("reason", err.Reason),
			logger.Error(err.Err))
		return "", err
	}

	p.log.Debug("screenshot probe succeeded", logger.String("url", target))
	return probeURL, nil
}

func (p *Prober) check(ctx context.Context, probeURL string) *domain.ProbeError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, http.NoBody)
	if err != nil {
		return &domain.ProbeError{Reason: "bad request", Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.ProbeError{Reason: "request failed", Err: err}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProbeError{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return &domain.ProbeError{Reason: fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type"))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return &domain.ProbeError{Reason: "read failed", Err: err}
	}
	if len(body) > MaxImageBytes {
		return &domain.ProbeError{Reason: "image too large"}
	}

	return decodable(body)
}

// decodable sniffs body and, for formats with a registered decoder, reads
// the image header.
func decodable(body []byte) *domain.ProbeError {
	if len(body) == 0 {
		return &domain.ProbeError{Reason: "empty image"}
	}

	sniffed := http.DetectContentType(body)
	switch sniffed {
	case "image/png", "image/jpeg", "image/gif":
		cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
		if err != nil {
			return &domain.ProbeError{Reason: "malformed image", Err: err}
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			return &domain.ProbeError{Reason: "empty image"}
		}
		return nil
	case "image/webp", "image/bmp", "image/x-icon":
		return nil
	default:
		return &domain.ProbeError{Reason: fmt.Sprintf("malformed image (%s)", sniffed)}
	}
}
