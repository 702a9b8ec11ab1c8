// Package avatar stores profile pictures outside the database.
package avatar

import (
	"context"
	"errors"

	"github.com/gabriel-vasile/mimetype"
)

// MaxBytes caps an uploaded avatar.
const MaxBytes = 1 << 20

var (
	ErrNotFound        = errors.New("avatar not found")
	ErrTooLarge        = errors.New("avatar must be at most 1 MiB")
	ErrUnsupportedType = errors.New("please upload an image (jpg, jpeg or png)")
)

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// Key is the object key of userID's avatar.
func Key(userID string) string {
	return "avatars/" + userID
}

// Sniff checks size and detects the content type from the bytes themselves,
// ignoring whatever the client claimed. Only jpeg and png are accepted.
func Sniff(data []byte) (string, error) {
	if len(data) > MaxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)

	switch {
	case mt.Is("image/jpeg"):
		return "image/jpeg", nil
	case mt.Is("image/png"):
		return "image/png", nil
	default:
		return "", ErrUnsupportedType
	}
}
