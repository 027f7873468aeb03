package catalog

import (
	"context"

	"releasehub/pkg/models"
)

// batch buffers enriched titles and writes them size at a time.
type batch struct {
	store   Store
	size    int
	pending []models.Title
	changed []bool
	written int
	// onWrite runs for every changed title once its batch is committed.
	onWrite func(models.Title)
}

func newBatch(store Store, size int, onWrite func(models.Title)) *batch {
	if size <= 0 {
		size = 1
	}
	return &batch{store: store, size: size, onWrite: onWrite}
}

func (b *batch) Add(ctx context.Context, t models.Title, changed bool) error {
	b.pending = append(b.pending, t)
	b.changed = append(b.changed, changed)
	if len(b.pending) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

func (b *batch) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.store.SaveBatch(ctx, b.pending); err != nil {
		return err
	}
	b.written += len(b.pending)
	if b.onWrite != nil {
		for i, t := range b.pending {
			if b.changed[i] {
				b.onWrite(t)
			}
		}
	}
	b.pending = b.pending[:0]
	b.changed = b.changed[:0]
	return nil
}
