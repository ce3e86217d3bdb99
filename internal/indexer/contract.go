package indexer

import (
	"context"

	domann "github.com/renoted/renoted/internal/domain/annotation"
	domshare "github.com/renoted/renoted/internal/domain/share"
)

// Index is the writable side of the search mirrors.
type Index interface {
	UpsertAnnotation(ctx context.Context, a *domann.Annotation, stacks []string) error
	RemoveAnnotation(ctx context.Context, id string) error
	UpsertShared(ctx context.Context, a *domshare.SharedAnnotation) error
	RemoveShared(ctx context.Context, id string) error
}

// AnnotationReader loads annotations from the system of record.
type AnnotationReader interface {
	Get(ctx context.Context, id string) (domann.Annotation, error)
	FetchByPage(ctx context.Context, uriID string) ([]domann.Annotation, error)
	FetchAll(ctx context.Context) ([]domann.Annotation, error)
}

// SharedReader loads shared annotation copies.
type SharedReader interface {
	GetShared(ctx context.Context, id string) (domshare.SharedAnnotation, error)
	FetchAllShared(ctx context.Context) ([]domshare.SharedAnnotation, error)
}

// StackReader resolves current stack memberships for reindexed pages.
type StackReader interface {
	ForPages(ctx context.Context, user string, uriIDs []string) (map[string][]string, error)
	PagesInStack(ctx context.Context, user, stack string) ([]string, error)
}
