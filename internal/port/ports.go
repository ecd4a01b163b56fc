// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/shaylevin89/follow-the-money/internal/domain"
)

// DocumentStore reads and writes the whole portfolio document against the
// remote file-hosting backend. Replace uses optimistic concurrency: the
// revision tag obtained from Fetch must accompany the write, and a stale tag
// yields *domain.ErrConflict.
type DocumentStore interface {
	// Fetch returns the latest document and its revision tag.
	// A missing file yields *domain.ErrNotFound.
	Fetch(ctx context.Context) (*domain.Document, string, error)
	// Replace overwrites the stored document. Pass the revision from the
	// preceding Fetch, or an empty revision to create the file. Returns the
	// new revision tag.
	Replace(ctx context.Context, doc *domain.Document, revision string) (string, error)
}

// RateProvider fetches a foreign-exchange rate from base to quote currency.
type RateProvider interface {
	Rate(ctx context.Context, base, quote string) (float64, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
