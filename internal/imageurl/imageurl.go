// Package imageurl holds the pure URL helpers that decide which preview
// image a catalog record shows. Every function is deterministic and has no
// side effects, so the same record resolves to the same image whether it is
// being created or rendered later.
package imageurl

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// ScreenshotBase is the rendering endpoint used for generated previews.
	ScreenshotBase = "https://image.thum.io/get/"

	// ScreenshotWidth and ScreenshotCrop are the canonical preview size.
	ScreenshotWidth = 640
	ScreenshotCrop  = 420

	// CDNHost is the photo CDN whose URLs accept resize parameters.
	CDNHost    = "images.unsplash.com"
	CDNWidth   = 720
	CDNQuality = 75
	CDNAuto    = "format"

	// DefaultProbeEndpoint renders a page and redirects to the image.
	DefaultProbeEndpoint = "https://api.microlink.io/"
)

var (
	schemeRe = regexp.MustCompile(`(?i)^https?://`)
	widthRe  = regexp.MustCompile(`/width/\d+/`)
	cropRe   = regexp.MustCompile(`/crop/\d+/`)

	screenshotMarker = strings.TrimPrefix(ScreenshotBase, "https://")
	cdnMarker        = CDNHost + "/"
)

// NormalizeURL trims raw and prepends https:// when no http(s) scheme is
// present. The scheme check is case-insensitive and an existing scheme is
// kept as written. Empty input yields "".
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if schemeRe.MatchString(trimmed) {
		return trimmed
	}
	return "https://" + trimmed
}

// IsPersistentImageReference reports whether value stays valid after the
// current session. Empty values and blob: object handles are not persistent.
func IsPersistentImageReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(trimmed), "blob:")
}

// BuildScreenshotURL returns the rendering-service URL for the page at
// rawURL, or "" when rawURL is empty.
func BuildScreenshotURL(rawURL string) string {
	normalized := NormalizeURL(rawURL)
	if normalized == "" {
		return ""
	}
	return ScreenshotBase +
		"width/" + strconv.Itoa(ScreenshotWidth) +
		"/crop/" + strconv.Itoa(ScreenshotCrop) +
		"/noanimate/" + EncodeURI(normalized)
}

// BuildProbeURL returns the request URL the screenshot probe loads for an
// already normalized page URL.
func BuildProbeURL(endpoint, normalized string) string {
	if endpoint == "" {
		endpoint = DefaultProbeEndpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep +
		"url=" + url.QueryEscape(normalized) +
		"&screenshot=true&meta=false&embed=screenshot.url" +
		"&viewport.width=" + strconv.Itoa(ScreenshotWidth) +
		"&viewport.height=" + strconv.Itoa(ScreenshotCrop)
}

// OptimizeImageURL rewrites known image URLs to the display size.
//
// Screenshot-service URLs get their width and crop segments set to the
// canonical size. Photo-CDN URLs get w, q and auto query parameters, other
// parameters kept in place; if the URL cannot be parsed it is returned as is.
// Anything else is returned trimmed and otherwise untouched.
func OptimizeImageURL(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.Contains(trimmed, screenshotMarker) {
		out := replaceFirst(widthRe, trimmed, "/width/"+strconv.Itoa(ScreenshotWidth)+"/")
		return replaceFirst(cropRe, out, "/crop/"+strconv.Itoa(ScreenshotCrop)+"/")
	}

	if strings.Contains(trimmed, cdnMarker) {
		u, err := url.Parse(trimmed)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return trimmed
		}
		u.RawQuery = setQuery(u.RawQuery, [][2]string{
			{"w", strconv.Itoa(CDNWidth)},
			{"q", strconv.Itoa(CDNQuality)},
			{"auto", CDNAuto},
		})
		return u.String()
	}

	return trimmed
}

// ResolveDisplayImage picks the image a record shows: its own image when
// that is persistent, otherwise a generated screenshot of its URL, both
// passed through OptimizeImageURL.
func ResolveDisplayImage(image, rawURL string) string {
	if IsPersistentImageReference(image) {
		return OptimizeImageURL(image)
	}
	return OptimizeImageURL(BuildScreenshotURL(rawURL))
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}

// setQuery sets each key to its value in rawQuery. Existing pairs keep
// their position, repeated keys collapse to the first one and missing keys
// are appended in the given order.
func setQuery(rawQuery string, pairs [][2]string) string {
	want := make(map[string]string, len(pairs))
	for _, p := range pairs {
		want[p[0]] = p[1]
	}

	written := make(map[string]bool, len(pairs))
	parts := make([]string, 0, len(pairs)+4)
	if rawQuery != "" {
		for _, part := range strings.Split(rawQuery, "&") {
			if part == "" {
				continue
			}
			rawKey, _, _ := strings.Cut(part, "=")
			key, err := url.QueryUnescape(rawKey)
			if err != nil {
				key = rawKey
			}
			v, ok := want[key]
			if !ok {
				parts = append(parts, part)
				continue
			}
			if written[key] {
				continue
			}
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
			written[key] = true
		}
	}

	for _, p := range pairs {
		if !written[p[0]] {
			parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
		}
	}
	return strings.Join(parts, "&")
}
