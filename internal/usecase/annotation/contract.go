package annotation

import (
	"context"
	"time"

	domann "github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/event"
	dompage "github.com/renoted/renoted/internal/domain/page"
)

// Repository is the storage contract for annotations.
type Repository interface {
	Insert(ctx context.Context, a *domann.Annotation) error
	Update(ctx context.Context, a *domann.Annotation) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domann.Annotation, error)
}

// Pages maintains the page records annotations hang off.
type Pages interface {
	Upsert(ctx context.Context, p *dompage.Page) (dompage.Page, error)
	TouchUpdated(ctx context.Context, id string, now time.Time) error
}

// Publisher hands committed changes to the index propagator.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}
