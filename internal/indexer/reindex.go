package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/renoted/renoted/internal/logger"
)

// ReindexAll rebuilds both search mirrors from the system of record. Used by
// the offline reindex command and after index schema changes.
func (w *Worker) ReindexAll(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	count := 0

	anns, err := w.anns.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load annotations: %w", err)
	}
	for i := range anns {
		a := &anns[i]
		stacks, err := w.stacks.ForPages(ctx, a.UserID(), []string{a.URIID()})
		if err != nil {
			return count, fmt.Errorf("load stacks for %s: %w", a.ID(), err)
		}
		if err := w.index.UpsertAnnotation(ctx, a, stacks[a.URIID()]); err != nil {
			return count, fmt.Errorf("index annotation %s: %w", a.ID(), err)
		}
		count++
	}

	shared, err := w.shares.FetchAllShared(ctx)
	if err != nil {
		return count, fmt.Errorf("load shared annotations: %w", err)
	}
	for i := range shared {
		if err := w.index.UpsertShared(ctx, &shared[i]); err != nil {
			return count, fmt.Errorf("index shared annotation %s: %w", shared[i].ID, err)
		}
		count++
	}

	log.Info("reindex complete",
		zap.Int("annotations", len(anns)),
		zap.Int("shared", len(shared)),
	)
	return count, nil
}
