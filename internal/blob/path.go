package blob

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultNamespace is the folder uploads are stored under.
	DefaultNamespace = "app-previews"
	// DefaultExtension is used when the filename has none.
	DefaultExtension = "png"
	// DefaultContentType is used when the caller gives none.
	DefaultContentType = "image/png"
)

// ObjectPath returns "<namespace>/<unix millis>-<8 random chars>.<ext>".
// ext is taken from filename, lowercased, and defaults to png.
func ObjectPath(namespace string, now time.Time, filename string) string {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return fmt.Sprintf("%s/%d-%s.%s", namespace, now.UnixMilli(), randomSuffix(), Extension(filename))
}

var extPattern = regexp.MustCompile(`^[a-z0-9]{1,8}$`)

// Extension returns the lowercased extension of filename without the dot.
// Anything outside [a-z0-9]{1,8} yields DefaultExtension.
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if !extPattern.MatchString(ext) {
		return DefaultExtension
	}
	return ext
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
