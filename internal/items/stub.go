//go:build !cgo

package items

import (
	"context"
	"errors"
)

// ErrNoCGO is returned when item extraction is unavailable due to missing CGO.
var ErrNoCGO = errors.New("item extraction requires CGO (tree-sitter)")

// Extractor splits documents into items.
// This is a stub implementation for non-CGO builds.
type Extractor struct{}

// NewExtractor creates a new item extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// IsAvailable returns whether item extraction is available.
// Returns false when CGO is disabled.
func IsAvailable() bool {
	return false
}

// Extract always returns an empty Map and ErrNoCGO.
func (e *Extractor) Extract(ctx context.Context, document []byte, lang Language) (Map, error) {
	return make(Map), ErrNoCGO
}
