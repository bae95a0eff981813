package imageurl

import "strings"

const upperhex = "0123456789ABCDEF"

// EncodeURI percent-encodes s the way JavaScript's encodeURI does: URI
// reserved characters and unreserved marks are kept, everything else is
// written as UTF-8 percent escapes. The rendering service expects the
// target URL in this form.
func EncodeURI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if keepInURI(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func keepInURI(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte(";,/?:@&=+$-_.!~*'()#", c) >= 0
}
