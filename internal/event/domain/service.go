package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Event, error)
	// GetBySlug returns ErrNotFound when no event carries the slug.
	GetBySlug(ctx context.Context, slug string) (*Event, error)
	SetActive(ctx context.Context, slug string, active bool) error
}

type CreateRequest struct {
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Active   *bool          `json:"active"`
	Metadata map[string]any `json:"metadata"`
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidSlug   = errors.New("invalid_slug")
	ErrNotFound      = errors.New("not_found")
	ErrAlreadyExists = errors.New("already_exists")
)

// NormalizeSlug lowercases and hyphenates value. An empty result means the
// value had no usable characters.
func NormalizeSlug(value string) string {
	return slug.Make(strings.TrimSpace(value))
}
