package persistence

import (
	"context"
	"time"

	"github.com/fjod/go_cart/cart-sync/internal/domain"
)

const flushTimeout = 2 * time.Second

// Writer saves snapshots in the background. Only the newest unsaved snapshot
// is kept, so a slow backend never holds up cart mutations.
type Writer struct {
	adapter *Adapter
	pending chan domain.Snapshot
}

func NewWriter(adapter *Adapter) *Writer {
	return &Writer{
		adapter: adapter,
		pending: make(chan domain.Snapshot, 1),
	}
}

// Enqueue never blocks. It is meant to be passed to store.Subscribe.
func (w *Writer) Enqueue(snap domain.Snapshot) {
	for {
		select {
		case w.pending <- snap:
			return
		default:
		}
		// drop the stale one and try again
		select {
		case <-w.pending:
		default:
		}
	}
}

// Run saves snapshots until ctx is done, then flushes whatever is pending.
// Cancelling ctx never interrupts a save already in progress: saves run on a
// detached context bounded only by the adapter timeout.
func (w *Writer) Run(ctx context.Context) {
	saveCtx := context.WithoutCancel(ctx)
	for {
		select {
		case snap := <-w.pending:
			w.adapter.Save(saveCtx, snap)
		case <-ctx.Done():
			w.flush()
			return
		}
	}
}

func (w *Writer) flush() {
	select {
	case snap := <-w.pending:
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		w.adapter.Save(ctx, snap)
	default:
	}
}
