// Package imagestore fetches reference face images for identities.
//
// An identity's ImageRef names its image: a path relative to the store
// root, an object key, or an absolute URL for the HTTP store. Without an
// ImageRef the id itself is used, with "/" replaced by "-" and each of the
// common image extensions tried in turn, first as given and then lower-cased.
package imagestore

import (
	"context"
	"strings"

	"github.com/okian/rollcall/internal/domain/gallery"
	"github.com/okian/rollcall/internal/domain/model"
)

// Sentinel kinds for image lookups.
var (
	// ErrNotFound reports an identity without a reference image.
	ErrNotFound = gallery.ErrImageNotFound
	// ErrInvalidRef reports an image reference or image that cannot be used
	// for this identity. Other errors mean the store itself failed.
	ErrInvalidRef = gallery.ErrInvalidImage
)

// maxImageBytes bounds a single reference image.
const maxImageBytes = 32 << 20

var defaultExtensions = []string{".jpg", ".jpeg", ".png"}

// Store returns raw image bytes for an identity.
type Store interface {
	Fetch(ctx context.Context, identity model.Identity) ([]byte, error)
}

var (
	_ Store = (*Dir)(nil)
	_ Store = (*HTTP)(nil)
	_ Store = (*S3)(nil)
)

// candidates lists the refs to try for identity, in order.
func candidates(identity model.Identity) []string {
	if ref := strings.TrimSpace(identity.ImageRef); ref != "" {
		return []string{ref}
	}
	base := strings.ReplaceAll(strings.TrimSpace(identity.ID), "/", "-")
	if base == "" {
		return nil
	}
	bases := []string{base}
	if lower := strings.ToLower(base); lower != base {
		bases = append(bases, lower)
	}
	out := make([]string, 0, len(bases)*len(defaultExtensions))
	for _, b := range bases {
		for _, ext := range defaultExtensions {
			out = append(out, b+ext)
		}
	}
	return out
}
