package resultstorage

import (
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when the payload cannot be identified.
const DefaultContentType = "text/plain"

var errUnknownContentType = errors.New("unrecognized content type")

// detectContentType sniffs the payload's magic bytes.
func detectContentType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if mt == nil || mt.Is("application/octet-stream") {
		return "", errUnknownContentType
	}
	return mt.String(), nil
}

// ContentType is the type Put stores for data.
func ContentType(data []byte) string {
	if len(data) == 0 {
		return DefaultContentType
	}
	if mime, err := detectContentType(data); err == nil {
		return mime
	}
	return DefaultContentType
}
