// Package sink persists normalized post batches into the configured
// backends with idempotent merge-on-write semantics.
package sink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/weibo-harvester/internal/metrics"
	"github.com/JakeFAU/weibo-harvester/internal/post"
)

// Sink receives one flushed batch for one target. firstBatch is true when
// nothing has been flushed for this target yet in the current run.
type Sink interface {
	Name() string
	Write(ctx context.Context, user *post.User, batch []*post.Post, firstBatch bool) error
}

// Fanout hands one batch to every configured sink. Sinks are independent:
// each receives its own deep copy of the batch when more than one is
// configured, and one sink's failure never blocks the others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout builds a Fanout over sinks.
func NewFanout(sinks []Sink, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

// Len returns the number of configured sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Write attempts every sink and returns the joined per-sink failures.
// Callers treat the result as reporting, not as a reason to abort.
func (f *Fanout) Write(ctx context.Context, user *post.User, batch []*post.Post, firstBatch bool) error {
	if len(batch) == 0 {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		b := batch
		if len(f.sinks) > 1 {
			b = post.CloneBatch(batch)
		}
		if err := s.Write(ctx, user, b, firstBatch); err != nil {
			metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			f.logger.Error("sink write failed",
				zap.String("sink", s.Name()),
				zap.String("target_id", user.ID),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		f.logger.Info("batch persisted",
			zap.String("sink", s.Name()),
			zap.String("target_id", user.ID),
			zap.Int("batch_size", len(batch)),
		)
	}
	return errors.Join(errs...)
}
