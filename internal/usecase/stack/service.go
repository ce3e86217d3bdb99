// Package stack implements named page collections: assigning pages in and
// out of stacks and archiving whole stacks out of the active view.
package stack

import (
	"context"
	"fmt"

	"github.com/renoted/renoted/internal/domain"
	domann "github.com/renoted/renoted/internal/domain/annotation"
	"github.com/renoted/renoted/internal/domain/event"
)

// Repository persists stack assignments and archive state.
type Repository interface {
	Assign(ctx context.Context, user, uriID, stack string) error
	Unassign(ctx context.Context, user, uriID, stack string) error
	Archive(ctx context.Context, user, stack string) error
	Dearchive(ctx context.Context, user, stack string) error
	Rename(ctx context.Context, user, from, to string) ([]string, error)
	Active(ctx context.Context, user string) ([]string, error)
}

// Annotations lists a page's annotations so their index entries can be
// refreshed after a membership change.
type Annotations interface {
	FetchByPage(ctx context.Context, uriID string) ([]domann.Annotation, error)
}

// Publisher hands committed changes to the index propagator.
type Publisher interface {
	Publish(ctx context.Context, ev event.Event)
}

// Service handles stack membership.
type Service struct {
	stacks Repository
	anns   Annotations
	bus    Publisher
}

// New creates a stack service.
func New(stacks Repository, anns Annotations, bus Publisher) *Service {
	return &Service{stacks: stacks, anns: anns, bus: bus}
}

// Assign puts a page into a stack and refreshes the index entries of the
// page's annotations so stack: filters pick them up.
func (s *Service) Assign(ctx context.Context, user, uriID, stack string) error {
	if stack == "" {
		return fmt.Errorf("%w: stack name is required", domain.ErrValidation)
	}
	if err := s.stacks.Assign(ctx, user, uriID, stack); err != nil {
		return fmt.Errorf("assign page %s to stack %s: %w", uriID, stack, err)
	}
	return s.republishPage(ctx, user, uriID)
}

// Unassign takes a page out of a stack.
func (s *Service) Unassign(ctx context.Context, user, uriID, stack string) error {
	if err := s.stacks.Unassign(ctx, user, uriID, stack); err != nil {
		return fmt.Errorf("unassign page %s from stack %s: %w", uriID, stack, err)
	}
	return s.republishPage(ctx, user, uriID)
}

// Archive hides a stack from the active list and from stack: search filters.
// Assignments survive so Dearchive restores the stack intact.
func (s *Service) Archive(ctx context.Context, user, stack string) error {
	if err := s.stacks.Archive(ctx, user, stack); err != nil {
		return fmt.Errorf("archive stack %s: %w", stack, err)
	}
	s.bus.Publish(ctx, event.Event{Kind: event.KindStackArchived, UserID: user, Stack: stack})
	return nil
}

// Dearchive returns an archived stack to the active list.
func (s *Service) Dearchive(ctx context.Context, user, stack string) error {
	if err := s.stacks.Dearchive(ctx, user, stack); err != nil {
		return fmt.Errorf("dearchive stack %s: %w", stack, err)
	}
	s.bus.Publish(ctx, event.Event{Kind: event.KindStackDearchived, UserID: user, Stack: stack})
	return nil
}

// Rename changes a stack's name everywhere it appears and refreshes the
// index entries of every page that carried the old name.
func (s *Service) Rename(ctx context.Context, user, from, to string) error {
	if to == "" {
		return fmt.Errorf("%w: stack name is required", domain.ErrValidation)
	}
	affected, err := s.stacks.Rename(ctx, user, from, to)
	if err != nil {
		return fmt.Errorf("rename stack %s to %s: %w", from, to, err)
	}
	for _, uriID := range affected {
		if err := s.republishPage(ctx, user, uriID); err != nil {
			return err
		}
	}
	return nil
}

// Active lists the user's non-archived stacks.
func (s *Service) Active(ctx context.Context, user string) ([]string, error) {
	return s.stacks.Active(ctx, user)
}

// republishPage emits an update event per annotation on the page. Stack
// membership lives on the annotation index documents, so each one has to be
// rewritten.
func (s *Service) republishPage(ctx context.Context, user, uriID string) error {
	anns, err := s.anns.FetchByPage(ctx, uriID)
	if err != nil {
		return fmt.Errorf("fetch annotations of page %s: %w", uriID, err)
	}
	for _, a := range anns {
		s.bus.Publish(ctx, event.Event{Kind: event.KindUpdated, AnnotationID: a.ID(), UserID: user})
	}
	return nil
}
