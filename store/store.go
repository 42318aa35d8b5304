// Package store holds the ephemeral key-value storage used to resume the last
// image pair after a page reload.
package store

import (
	"context"
	"errors"
)

// Fixed keys, one per image.
const (
	KeyUploadedImage  = "uploadedImage"
	KeyProcessedImage = "processedImage"
)

var ErrNotFound = errors.New("session key not found")

// SessionStore is a string key-value store. Get returns ErrNotFound for missing keys.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, keys ...string) error
}
