package search

import (
	"context"

	domann "github.com/renoted/renoted/internal/domain/annotation"
	dompage "github.com/renoted/renoted/internal/domain/page"
	domshare "github.com/renoted/renoted/internal/domain/share"
	"github.com/renoted/renoted/internal/domain/search/query"
	"github.com/renoted/renoted/internal/domain/search/result"
)

// Index runs ranked queries against the search mirrors.
type Index interface {
	Search(ctx context.Context, q query.Query, scopeUser string) (result.IDPage, error)
	SearchShared(ctx context.Context, q query.Query, recipient string) (result.IDPage, error)
}

// AnnotationReader hydrates annotations from the system of record.
type AnnotationReader interface {
	FetchByIDs(ctx context.Context, ids []string) (map[string]domann.Annotation, error)
	FetchByPage(ctx context.Context, uriID string) ([]domann.Annotation, error)
}

// PageReader resolves page records for bucketing.
type PageReader interface {
	FetchByIDs(ctx context.Context, ids []string) (map[string]dompage.Page, error)
	GetByAddress(ctx context.Context, uriAddress, userID string, isBookmark bool) (dompage.Page, error)
}

// SharedReader hydrates shared annotation copies and their pages.
type SharedReader interface {
	FetchSharedByIDs(ctx context.Context, ids []string) (map[string]domshare.SharedAnnotation, error)
	FetchSharedPagesByIDs(ctx context.Context, ids []string) (map[string]domshare.SharedPage, error)
	GetSharedPage(ctx context.Context, uriAddress, userID string) (domshare.SharedPage, error)
}

// StackReader resolves stack memberships for bucketing.
type StackReader interface {
	ForPages(ctx context.Context, user string, uriIDs []string) (map[string][]string, error)
}
