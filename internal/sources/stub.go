//go:build !cgo

package sources

import "context"

// Indexer is a stub used when CGO is not available.
type Indexer struct{}

// NewIndexer creates an indexer that finds nothing.
func NewIndexer() *Indexer {
	return &Indexer{}
}

// IsAvailable reports whether source indexing is compiled in.
func IsAvailable() bool {
	return false
}

// BuildIndex returns an empty index when CGO is not available.
func (ix *Indexer) BuildIndex(ctx context.Context, cargoRoot string) (Index, error) {
	return Index{}, nil
}
