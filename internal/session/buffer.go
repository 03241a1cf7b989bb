package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/lingobot/internal/review"
	"github.com/example/lingobot/internal/spaced_repetition"
	"github.com/example/lingobot/pkg/models"
)

// ResultBuffer accumulates scoring events during a session so nothing hits
// the network per answer. It is an append-only list of pending outcomes plus
// a separate skip list, drained by a single flush at session end.
type ResultBuffer struct {
	outcomes []review.Outcome
	skipped  []int64
	flushed  bool
}

// NewResultBuffer creates an empty buffer.
func NewResultBuffer() *ResultBuffer {
	return &ResultBuffer{}
}

// AddOutcome appends one terminal quality score for an entity.
func (b *ResultBuffer) AddOutcome(entityID int64, quality spaced_repetition.Quality) {
	b.outcomes = append(b.outcomes, review.Outcome{EntityID: entityID, Quality: quality})
}

// DropOutcome removes any buffered outcome for the entity. Used when an
// entity is skipped after its quiz already scored.
func (b *ResultBuffer) DropOutcome(entityID int64) {
	kept := b.outcomes[:0]
	for _, o := range b.outcomes {
		if o.EntityID != entityID {
			kept = append(kept, o)
		}
	}
	b.outcomes = kept
}

// AddSkip records an entity removed from the session.
func (b *ResultBuffer) AddSkip(entityID int64) {
	for _, id := range b.skipped {
		if id == entityID {
			return
		}
	}
	b.skipped = append(b.skipped, entityID)
}

// Outcomes returns the buffered quality scores.
func (b *ResultBuffer) Outcomes() []review.Outcome {
	return b.outcomes
}

// Skipped returns the buffered skip signals.
func (b *ResultBuffer) Skipped() []int64 {
	return b.skipped
}

// OutcomeSink is where flushed results land. Implemented by review.Store.
type OutcomeSink interface {
	SubmitOutcomes(ctx context.Context, userID int64, entityType models.EntityType, outcomes []review.Outcome) error
	SubmitSkipped(ctx context.Context, userID int64, entityType models.EntityType, entityIDs []int64) error
}

// Flusher drains a result buffer into the memory record store, best effort.
// A failed flush is logged and swallowed: a missed update only means the item
// comes back on its old schedule, which self-corrects on the next due cycle.
type Flusher struct {
	sink OutcomeSink
	log  *zap.Logger
}

// NewFlusher creates a flusher writing to the given sink.
func NewFlusher(sink OutcomeSink, log *zap.Logger) *Flusher {
	return &Flusher{sink: sink, log: log}
}

// Flush submits everything the buffer holds. It is idempotent: a second call
// for the same buffer is a no-op, so finishing and abandoning a session can
// both trigger it safely. Errors never propagate to the caller.
func (f *Flusher) Flush(ctx context.Context, userID int64, entityType models.EntityType, buf *ResultBuffer) {
	if buf.flushed {
		return
	}
	buf.flushed = true

	if len(buf.outcomes) > 0 {
		if err := f.sink.SubmitOutcomes(ctx, userID, entityType, buf.outcomes); err != nil {
			f.log.Warn("failed to flush session outcomes",
				zap.Int64("user_id", userID),
				zap.Int("count", len(buf.outcomes)),
				zap.Error(err))
		}
	}

	if len(buf.skipped) > 0 {
		if err := f.sink.SubmitSkipped(ctx, userID, entityType, buf.skipped); err != nil {
			f.log.Warn("failed to flush session skips",
				zap.Int64("user_id", userID),
				zap.Int("count", len(buf.skipped)),
				zap.Error(err))
		}
	}
}
