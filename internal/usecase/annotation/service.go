// Package annotation implements the annotation write path: create, update,
// and delete, each keeping the parent page record current and emitting an
// indexing event after the write commits.
package annotation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/event"
	dompage "github.com/renoted/renoted/internal/domain/page"
)

// CreateInput is the writable content of a new annotation.
type CreateInput struct {
	TargetURI           string
	TargetURINormalized string
	Title               string
	Kind                string
	Text                string
	TextRendered        string
	Tags                []string
	Selectors           []domann.Selector
	VideoMarkers        []domann.Marker
	AudioMarkers        []domann.Marker
	Group               string
	Shared              bool
	Extra               map[string]any
}

// Service handles annotation writes.
type Service struct {
	repo  Repository
	pages Pages
	bus   Publisher
	now   func() time.Time
}

// New creates an annotation service.
func New(repo Repository, pages Pages, bus Publisher) *Service {
	return &Service{repo: repo, pages: pages, bus: bus, now: time.Now}
}

// Create stores a new annotation. The parent page record is upserted first
// so the annotation always references a live page id.
func (s *Service) Create(ctx context.Context, user string, in CreateInput) (domann.Annotation, error) {
	if user == "" {
		return domann.Annotation{}, fmt.Errorf("%w: userid is required", domain.ErrValidation)
	}
	if in.TargetURI == "" {
		return domann.Annotation{}, fmt.Errorf("%w: uri is required", domain.ErrValidation)
	}

	now := s.now().UTC()

	candidate, err := dompage.New(uuid.NewString(), in.TargetURI, user, in.Title, "", false, nil, now)
	if err != nil {
		return domann.Annotation{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	pg, err := s.pages.Upsert(ctx, &candidate)
	if err != nil {
		return domann.Annotation{}, fmt.Errorf("upsert page: %w", err)
	}

	extra := in.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extra["uri_id"] = pg.ID()

	a, err := domann.New(uuid.NewString(), domann.Fields{
		UserID:              user,
		URIID:               pg.ID(),
		TargetURI:           in.TargetURI,
		TargetURINormalized: in.TargetURINormalized,
		Kind:                in.Kind,
		Text:                in.Text,
		TextRendered:        in.TextRendered,
		Tags:                in.Tags,
		Selectors:           in.Selectors,
		VideoMarkers:        in.VideoMarkers,
		AudioMarkers:        in.AudioMarkers,
		Group:               in.Group,
		Shared:              in.Shared,
		Extra:               extra,
	}, now)
	if err != nil {
		return domann.Annotation{}, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	if err := s.repo.Insert(ctx, &a); err != nil {
		return domann.Annotation{}, fmt.Errorf("insert annotation: %w", err)
	}

	s.bus.Publish(ctx, event.Event{Kind: event.KindCreated, AnnotationID: a.ID(), UserID: user})
	return a, nil
}

// Update rewrites an annotation's content. Only the owner may update; a
// foreign id reads as absent.
func (s *Service) Update(ctx context.Context, user, id string, in CreateInput) (domann.Annotation, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return domann.Annotation{}, err
	}
	if existing.UserID() != user {
		return domann.Annotation{}, domain.ErrAnnotationNotFound
	}

	now := s.now().UTC()
	f := existing.Fields()
	if in.TargetURI != "" {
		f.TargetURI = in.TargetURI
	}
	if in.TargetURINormalized != "" {
		f.TargetURINormalized = in.TargetURINormalized
	}
	if in.Kind != "" {
		f.Kind = in.Kind
	}
	f.Text = in.Text
	f.TextRendered = in.TextRendered
	if in.Tags != nil {
		f.Tags = in.Tags
	}
	if in.Selectors != nil {
		f.Selectors = in.Selectors
	}
	if in.VideoMarkers != nil {
		f.VideoMarkers = in.VideoMarkers
	}
	if in.AudioMarkers != nil {
		f.AudioMarkers = in.AudioMarkers
	}
	if in.Group != "" {
		f.Group = in.Group
	}
	f.Shared = in.Shared
	if in.Extra != nil {
		f.Extra = in.Extra
	}

	updated := existing.WithFields(f, now)
	if err := s.repo.Update(ctx, &updated); err != nil {
		return domann.Annotation{}, err
	}
	if err := s.pages.TouchUpdated(ctx, updated.URIID(), now); err != nil {
		return domann.Annotation{}, fmt.Errorf("touch page: %w", err)
	}

	s.bus.Publish(ctx, event.Event{Kind: event.KindUpdated, AnnotationID: id, UserID: user})
	return updated, nil
}

// Delete removes an annotation. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, user, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID() != user {
		return domain.ErrAnnotationNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.pages.TouchUpdated(ctx, existing.URIID(), s.now().UTC()); err != nil {
		return fmt.Errorf("touch page: %w", err)
	}

	s.bus.Publish(ctx, event.Event{Kind: event.KindDeleted, AnnotationID: id, UserID: user})
	return nil
}

// Get returns one annotation, owner-scoped.
func (s *Service) Get(ctx context.Context, user, id string) (domann.Annotation, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return domann.Annotation{}, err
	}
	if a.UserID() != user {
		return domann.Annotation{}, domain.ErrAnnotationNotFound
	}
	return a, nil
}
