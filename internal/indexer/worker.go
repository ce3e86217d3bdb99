package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/renoted/renoted/internal/domain"
	"github.com/renoted/renoted/internal/domain/event"
	"github.com/renoted/renoted/internal/logger"
	"github.com/renoted/renoted/internal/metrics"
)

type handler func(ctx context.Context, ev event.Event) error

// Worker drains the bus and applies each event to the search mirrors.
type Worker struct {
	bus      *Bus
	index    Index
	anns     AnnotationReader
	shares   SharedReader
	stacks   StackReader
	handlers map[event.Kind]handler
	workers  int
}

// NewWorker creates a worker. It fails fast when any event kind lacks a
// handler, so a new kind cannot silently go unprocessed.
func NewWorker(bus *Bus, index Index, anns AnnotationReader, shares SharedReader, stacks StackReader, workers int) (*Worker, error) {
	if workers <= 0 {
		workers = 2
	}
	w := &Worker{
		bus:     bus,
		index:   index,
		anns:    anns,
		shares:  shares,
		stacks:  stacks,
		workers: workers,
	}
	w.handlers = map[event.Kind]handler{
		event.KindCreated:         w.upsertAnnotation,
		event.KindUpdated:         w.upsertAnnotation,
		event.KindDeleted:         w.removeAnnotation,
		event.KindSharedCreated:   w.upsertShared,
		event.KindSharedDeleted:   w.removeShared,
		event.KindStackArchived:   w.reindexStack,
		event.KindStackDearchived: w.reindexStack,
	}
	for _, k := range event.Kinds() {
		if _, ok := w.handlers[k]; !ok {
			return nil, fmt.Errorf("no handler for event kind %s", k)
		}
	}
	return w, nil
}

// Run consumes events until the context is cancelled. Handler errors and
// panics are logged and counted; they never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev := <-w.bus.Events():
					w.handle(ctx, ev)
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Drain processes whatever is left in the queue after producers have
// stopped, until the queue is empty or the context deadline passes. It
// returns the number of events handled. Run during shutdown, after the HTTP
// server has stopped accepting requests.
func (w *Worker) Drain(ctx context.Context) int {
	n := 0
	for {
		if ctx.Err() != nil {
			return n
		}
		select {
		case ev := <-w.bus.Events():
			w.handle(ctx, ev)
			n++
		default:
			return n
		}
	}
}

// Handle applies a single event synchronously. Exposed for the bulk
// reindexer and tests; Run goes through the same path.
func (w *Worker) Handle(ctx context.Context, ev event.Event) error {
	return w.handlers[ev.Kind](ctx, ev)
}

func (w *Worker) handle(ctx context.Context, ev event.Event) {
	log := logger.FromContext(ctx).With(
		zap.String("kind", ev.Kind.String()),
		zap.String("annotation_id", ev.AnnotationID),
	)

	defer func() {
		if r := recover(); r != nil {
			metrics.IndexEventFailed(ev.Kind.String())
			log.Error("index event handler panicked", zap.Any("panic", r))
		}
	}()

	if err := w.Handle(ctx, ev); err != nil {
		metrics.IndexEventFailed(ev.Kind.String())
		log.Warn("index event failed", zap.Error(err))
		return
	}
	metrics.IndexEventProcessed(ev.Kind.String())
}

func (w *Worker) upsertAnnotation(ctx context.Context, ev event.Event) error {
	a, err := w.anns.Get(ctx, ev.AnnotationID)
	if err != nil {
		// Deleted before the event drained; the delete event cleans up.
		if errors.Is(err, domain.ErrAnnotationNotFound) {
			return nil
		}
		return err
	}

	stacks, err := w.stacks.ForPages(ctx, a.UserID(), []string{a.URIID()})
	if err != nil {
		return err
	}
	return w.index.UpsertAnnotation(ctx, &a, stacks[a.URIID()])
}

func (w *Worker) removeAnnotation(ctx context.Context, ev event.Event) error {
	return w.index.RemoveAnnotation(ctx, ev.AnnotationID)
}

func (w *Worker) upsertShared(ctx context.Context, ev event.Event) error {
	sa, err := w.shares.GetShared(ctx, ev.AnnotationID)
	if err != nil {
		if errors.Is(err, domain.ErrAnnotationNotFound) {
			return nil
		}
		return err
	}
	return w.index.UpsertShared(ctx, &sa)
}

func (w *Worker) removeShared(ctx context.Context, ev event.Event) error {
	return w.index.RemoveShared(ctx, ev.AnnotationID)
}

// reindexStack rewrites the stacks field of every annotation on every page
// the stack touches, so archive state changes become visible to stack:
// queries and bucket type filters.
func (w *Worker) reindexStack(ctx context.Context, ev event.Event) error {
	pageIDs, err := w.stacks.PagesInStack(ctx, ev.UserID, ev.Stack)
	if err != nil {
		return err
	}
	if len(pageIDs) == 0 {
		return nil
	}

	memberships, err := w.stacks.ForPages(ctx, ev.UserID, pageIDs)
	if err != nil {
		return err
	}

	for _, pageID := range pageIDs {
		anns, err := w.anns.FetchByPage(ctx, pageID)
		if err != nil {
			return err
		}
		for i := range anns {
			if err := w.index.UpsertAnnotation(ctx, &anns[i], memberships[pageID]); err != nil {
				return err
			}
		}
	}
	return nil
}
