package db

import (
	"context"
	"time"
)

// Store is the search-backend facade combining all sub-interfaces.
// Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	HashStore
	SetStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations, used for the indexed
// annotation mirrors.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, key string) error
}

// SetStore provides set operations, used by the stack side store.
type SetStore interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides full-text and faceted search over FT indexes. Facet
// aggregation rides on Search via Query.Facets.
type Searcher interface {
	Search(ctx context.Context, q *Query) (*SearchResult, error)
}
