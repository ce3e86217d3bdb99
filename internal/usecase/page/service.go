// Package page implements the URL feed: listing, editing, and deleting the
// document records that annotations hang off.
package page

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/event"
	dompage "github.com/renoted/renoted/internal/domain/page"
)

// Repository persists page records.
type Repository interface {
	Get(ctx context.Context, id string) (dompage.Page, error)
	FetchByUser(ctx context.Context, userID string, limit, offset int) ([]dompage.Page, error)
	UpdateMeta(ctx context.Context, id, title, description string, tags []string, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// Annotations reads and removes the annotations hanging off a page.
type Annotations interface {
	FetchByPage(ctx context.Context, uriID string) ([]domann.Annotation, error)
	DeleteByPage(ctx context.Context, uriID string) ([]string, error)
}

// Annotated is a page together with its annotations in document order.
type Annotated struct {
	Page        dompage.Page
	Annotations []domann.Annotation
}

// Publisher hands committed changes to the index propagator.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// UpdateInput carries the editable page metadata.
type UpdateInput struct {
	Title       string
	Description string
	Tags        []string
}

// Service handles the URL feed.
type Service struct {
	pages Repository
	anns  Annotations
	bus   Publisher
	now   func() time.Time
}

// New creates a page service.
func New(pages Repository, anns Annotations, bus Publisher) *Service {
	return &Service{pages: pages, anns: anns, bus: bus, now: time.Now}
}

// Feed lists the user's pages, most recently updated first.
func (s *Service) Feed(ctx context.Context, user string, limit, offset int) ([]dompage.Page, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.pages.FetchByUser(ctx, user, limit, offset)
}

// Get returns one of the user's pages.
func (s *Service) Get(ctx context.Context, user, id string) (dompage.Page, error) {
	pg, err := s.pages.Get(ctx, id)
	if err != nil {
		return dompage.Page{}, err
	}
	if pg.UserID() != user {
		return dompage.Page{}, domain.ErrPageNotFound
	}
	return pg, nil
}

// FeedAnnotated lists the user's pages with their annotations attached.
func (s *Service) FeedAnnotated(ctx context.Context, user string, limit, offset int) ([]Annotated, error) {
	pages, err := s.Feed(ctx, user, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Annotated, 0, len(pages))
	for _, pg := range pages {
		anns, err := s.pageAnnotations(ctx, pg.ID())
		if err != nil {
			return nil, err
		}
		out = append(out, Annotated{Page: pg, Annotations: anns})
	}
	return out, nil
}

// GetAnnotated returns one of the user's pages with its annotations in
// document order.
func (s *Service) GetAnnotated(ctx context.Context, user, id string) (Annotated, error) {
	pg, err := s.Get(ctx, user, id)
	if err != nil {
		return Annotated{}, err
	}
	anns, err := s.pageAnnotations(ctx, pg.ID())
	if err != nil {
		return Annotated{}, err
	}
	return Annotated{Page: pg, Annotations: anns}, nil
}

func (s *Service) pageAnnotations(ctx context.Context, uriID string) ([]domann.Annotation, error) {
	anns, err := s.anns.FetchByPage(ctx, uriID)
	if err != nil {
		return nil, fmt.Errorf("fetch annotations of page %s: %w", uriID, err)
	}
	sort.SliceStable(anns, func(i, j int) bool {
		return anns[i].PositionKey() < anns[j].PositionKey()
	})
	return anns, nil
}

// Update edits the page's title, description, and tags.
func (s *Service) Update(ctx context.Context, user, id string, in UpdateInput) (dompage.Page, error) {
	pg, err := s.Get(ctx, user, id)
	if err != nil {
		return dompage.Page{}, err
	}

	if err := s.pages.UpdateMeta(ctx, pg.ID(), in.Title, in.Description, in.Tags, s.now().UTC()); err != nil {
		return dompage.Page{}, fmt.Errorf("update page %s: %w", id, err)
	}
	return s.pages.Get(ctx, id)
}

// Delete removes a page together with every annotation on it, and emits a
// delete event per removed annotation so the search mirror catches up.
func (s *Service) Delete(ctx context.Context, user, id string) error {
	pg, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}

	removed, err := s.anns.DeleteByPage(ctx, pg.ID())
	if err != nil {
		return fmt.Errorf("delete annotations of page %s: %w", id, err)
	}
	if err := s.pages.Delete(ctx, pg.ID()); err != nil {
		return fmt.Errorf("delete page %s: %w", id, err)
	}

	for _, annID := range removed {
		s.bus.Publish(ctx, event.Event{Kind: event.KindDeleted, AnnotationID: annID, UserID: user})
	}
	return nil
}
