package resultstorage

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
)

// noHTTP matches http:// and https:// prefixes, URL-escaped or not.
var noHTTP = regexp.MustCompile(`(?i)^http.?(%3A|:)//`)

// NormalizePath turns a request path into an object key of the form
// <first segment>/<sha1 of path>/<rest>. The digest level spreads sequential
// keys over many prefixes so the store does not hot-spot a single range.
func NormalizePath(path string) string {
	stripped := noHTTP.ReplaceAllString(path, "")

	sum := sha1.Sum([]byte(stripped))
	digest := hex.EncodeToString(sum[:])

	parts := strings.Split(stripped, "/")
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, parts[0], digest)
	segments = append(segments, parts[1:]...)
	return joinSegments(segments)
}

// joinSegments concatenates with "/" without cleaning: empty segments are
// kept, and an empty leading segment does not produce a leading slash.
func joinSegments(segments []string) string {
	var b strings.Builder
	for _, s := range segments {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "/") {
			b.WriteByte('/')
		}
		b.WriteString(s)
	}
	return b.String()
}
