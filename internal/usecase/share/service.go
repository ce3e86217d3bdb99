// Package share implements the sharing write path: copying an annotation to
// a recipient and withdrawing a share, each emitting an indexing event.
package share

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/event"
	domshare "github.com/renoted/renoted/internal/domain/share"
)

// Annotations reads the annotations being shared.
type Annotations interface {
	Get(ctx context.Context, id string) (domann.Annotation, error)
}

// Repository persists sharing records.
type Repository interface {
	Share(ctx context.Context, sharing *domshare.Sharing, ann *domshare.SharedAnnotation, pg *domshare.SharedPage) (domshare.SharedAnnotation, error)
	Unshare(ctx context.Context, sharedAnnotationID string) error
	GetShared(ctx context.Context, id string) (domshare.SharedAnnotation, error)
	FetchSharedByUser(ctx context.Context, userID string, limit, offset int) ([]domshare.SharedAnnotation, error)
}

// Publisher hands committed changes to the index propagator.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// Input identifies the recipient of a share.
type Input struct {
	RecipientUserID string
	RecipientName   string
	RecipientEmail  string
	Title           string
}

// Service handles sharing.
type Service struct {
	anns Annotations
	repo Repository
	bus  Publisher
	now  func() time.Time
}

// New creates a share service.
func New(anns Annotations, repo Repository, bus Publisher) *Service {
	return &Service{anns: anns, repo: repo, bus: bus, now: time.Now}
}

// Share copies one of the owner's annotations to a recipient. Sharing the
// same annotation to the same recipient again refreshes the existing copy
// instead of duplicating it.
func (s *Service) Share(ctx context.Context, owner, annotationID string, in Input) (domshare.SharedAnnotation, error) {
	if in.RecipientUserID == "" || in.RecipientEmail == "" {
		return domshare.SharedAnnotation{}, fmt.Errorf("%w: recipient is required", domain.ErrValidation)
	}

	a, err := s.anns.Get(ctx, annotationID)
	if err != nil {
		return domshare.SharedAnnotation{}, err
	}
	if a.UserID() != owner {
		return domshare.SharedAnnotation{}, domain.ErrAnnotationNotFound
	}

	now := s.now().UTC()
	sharing := domshare.Sharing{
		ID:               uuid.NewString(),
		AnnotationID:     annotationID,
		SharedByUserID:   owner,
		SharedToUsername: in.RecipientName,
		SharedToEmail:    in.RecipientEmail,
		IsShared:         true,
		Created:          now,
		Updated:          now,
	}
	copied := domshare.SharedAnnotation{
		ID:             uuid.NewString(),
		UserID:         in.RecipientUserID,
		SharedByUserID: owner,
		Text:           a.Text(),
		TextRendered:   a.TextRendered(),
		Tags:           a.Tags(),
		Shared:         true,
		TargetURI:      a.TargetURI(),
		TargetURINorm:  a.TargetURINormalized(),
		Selectors:      a.Selectors(),
		VideoMarkers:   a.VideoMarkers(),
		AudioMarkers:   a.AudioMarkers(),
		Title:          in.Title,
		Kind:           a.Kind(),
		Extra:          a.Extra(),
		Created:        now,
		Updated:        now,
	}
	pg := domshare.SharedPage{
		ID:         uuid.NewString(),
		URIAddress: a.TargetURI(),
		Title:      in.Title,
		UserID:     in.RecipientUserID,
		Created:    now,
		Updated:    now,
	}

	stored, err := s.repo.Share(ctx, &sharing, &copied, &pg)
	if err != nil {
		return domshare.SharedAnnotation{}, fmt.Errorf("share annotation %s: %w", annotationID, err)
	}

	s.bus.Publish(ctx, event.Event{Kind: event.KindSharedCreated, AnnotationID: stored.ID, UserID: stored.UserID})
	return stored, nil
}

// Unshare withdraws a shared copy. Either side of the share may withdraw.
func (s *Service) Unshare(ctx context.Context, user, sharedAnnotationID string) error {
	sa, err := s.repo.GetShared(ctx, sharedAnnotationID)
	if err != nil {
		return err
	}
	if sa.UserID != user && sa.SharedByUserID != user {
		return domain.ErrAnnotationNotFound
	}

	if err := s.repo.Unshare(ctx, sharedAnnotationID); err != nil {
		return err
	}

	s.bus.Publish(ctx, event.Event{Kind: event.KindSharedDeleted, AnnotationID: sharedAnnotationID, UserID: sa.UserID})
	return nil
}

// Feed returns everything shared to the user, newest first.
func (s *Service) Feed(ctx context.Context, user string, limit, offset int) ([]domshare.SharedAnnotation, error) {
	return s.repo.FetchSharedByUser(ctx, user, limit, offset)
}
