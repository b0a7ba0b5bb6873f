// Package storage keeps uploaded files so they can be re-read at save time.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a stored path does not exist.
var ErrObjectNotFound = errors.New("stored object not found")

// Store persists upload payloads under stable paths.
type Store interface {
	// Put writes r fully and returns the path to read it back with.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey builds a unique, date-partitioned object key that keeps the original extension.
func NewKey(fileName string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return fmt.Sprintf("uploads/%s/%s-%s", now.UTC().Format("2006/01/02"), uuid.NewString(), base)
}
