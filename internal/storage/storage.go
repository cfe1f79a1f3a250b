// Package storage puts athlete photos into an object store and resolves the
// public locator for a stored key. Two backends exist: an S3-compatible bucket
// and a local filesystem served by the API under /media/.
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Store is the object storage used by the upload pipeline.
type Store interface {
	// Put writes size bytes from body under key and returns a backend
	// specific object reference.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// PublicURL returns the URL under which key is publicly readable.
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// CacheControl is applied to every stored photo.
const CacheControl = "max-age=3600"

// escapeKey escapes each path segment of key for use in a URL.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// cleanKey rejects keys that could escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errors.New("empty object key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return "", errors.New("invalid object key")
		}
	}
	return key, nil
}
