package refinement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/consolidator/internal/domain"
	"github.com/kailas-cloud/consolidator/internal/domain/event"
	"github.com/kailas-cloud/consolidator/internal/metrics"
)

// Request queues a refinement. It reports false when the document is already
// queued or active.
func (o *Orchestrator) Request(docID string, opts Options) (bool, error) {
	if docID == "" {
		return false, fmt.Errorf("document id is required: %w", domain.ErrInvalidSchema)
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false, ErrClosed
	}
	if _, ok := o.active[docID]; ok || o.queuedLocked(docID) {
		o.mu.Unlock()
		return false, nil
	}
	o.queue = append(o.queue, queued{docID: docID, opts: opts})
	depth := len(o.queue)
	o.mu.Unlock()

	metrics.RefinementQueueDepth.Set(float64(depth))
	o.notify(event.RefinementQueued, docID, map[string]int{"position": depth})

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return true, nil
}

func (o *Orchestrator) queuedLocked(docID string) bool {
	for _, q := range o.queue {
		if q.docID == docID {
			return true
		}
	}
	return false
}

func (o *Orchestrator) dequeueLocked(docID string) {
	for i, q := range o.queue {
		if q.docID == docID {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			metrics.RefinementQueueDepth.Set(float64(len(o.queue)))
			return
		}
	}
}

func (o *Orchestrator) takeBatch() []queued {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := min(o.queueOpts.BatchSize, len(o.queue))
	batch := make([]queued, n)
	copy(batch, o.queue[:n])
	o.queue = o.queue[n:]
	metrics.RefinementQueueDepth.Set(float64(len(o.queue)))
	return batch
}

func (o *Orchestrator) queueLen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Run drains the request queue until ctx is done or the orchestrator is closed.
// Requests run in batches: concurrently inside a batch, batches one after another
// with a pause in between.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.ctx.Done():
			return nil
		case <-o.wake:
		}

		for {
			batch := o.takeBatch()
			if len(batch) == 0 {
				break
			}
			o.runBatch(ctx, batch)
			if o.queueLen() == 0 {
				break
			}
			pause := time.NewTimer(o.queueOpts.BatchPause)
			select {
			case <-ctx.Done():
				pause.Stop()
				return nil
			case <-o.ctx.Done():
				pause.Stop()
				return nil
			case <-pause.C:
			}
		}
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, batch []queued) {
	var g errgroup.Group
	for _, item := range batch {
		g.Go(func() error {
			p, _, _, err := o.start(item.docID, item.opts)
			if err != nil {
				o.logger.Warn("Queued refinement not started",
					zap.String("document_id", item.docID),
					zap.Error(err),
				)
				return nil
			}
			select {
			case <-p.done:
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()
	o.logger.Debug("Refinement batch drained", zap.Int("size", len(batch)))
}
