package session

import (
	"errors"
	"fmt"

	"github.com/example/lingobot/internal/spaced_repetition"
	"github.com/example/lingobot/pkg/models"
)

// ErrQueueExhausted is returned when an interaction arrives after the last item.
var ErrQueueExhausted = errors.New("session queue exhausted")

// Queue is the ordered, stateful list of session items for one user session.
// It is private client state: one user, one device, no sharing, no locking.
type Queue struct {
	items []*SessionItem
	pos   int

	buffer *ResultBuffer

	reviewCount int
	newCount    int
}

// BuildQueue expands due (review) and fresh (new) entities into the session
// order: a teach entry then a quiz entry per entity, with all review pairs
// ahead of all new pairs (spaced recall before fresh acquisition).
func BuildQueue(reviews, fresh []models.Entity) *Queue {
	q := &Queue{
		buffer:      NewResultBuffer(),
		reviewCount: len(reviews),
		newCount:    len(fresh),
	}

	for _, e := range reviews {
		state := &itemState{}
		q.items = append(q.items,
			&SessionItem{Entity: e, Phase: PhaseReviewTeach, state: state},
			&SessionItem{Entity: e, Phase: PhaseReviewQuiz, state: state},
		)
	}
	for _, e := range fresh {
		state := &itemState{}
		q.items = append(q.items,
			&SessionItem{Entity: e, Phase: PhaseNewTeach, state: state},
			&SessionItem{Entity: e, Phase: PhaseNewQuiz, state: state},
		)
	}

	return q
}

// Current returns the item being presented, or nil when the queue is done.
func (q *Queue) Current() *SessionItem {
	if q.pos >= len(q.items) {
		return nil
	}
	return q.items[q.pos]
}

// Done reports whether every item has been consumed.
func (q *Queue) Done() bool {
	return q.pos >= len(q.items)
}

// Remaining returns how many items are still pending, including the current one.
func (q *Queue) Remaining() int {
	return len(q.items) - q.pos
}

// Buffer exposes the session's result buffer for flushing.
func (q *Queue) Buffer() *ResultBuffer {
	return q.buffer
}

// Rate captures the user's subjective "did you know this" signal (1, 3 or 5)
// on the current item. The rating lives in the entity's shared state
// container, so the quiz entry of the same entity sees it when its terminal
// score is computed.
func (q *Queue) Rate(rating int) error {
	cur := q.Current()
	if cur == nil {
		return ErrQueueExhausted
	}
	if rating != 1 && rating != 3 && rating != 5 {
		return fmt.Errorf("self-rating %d must be 1, 3 or 5", rating)
	}

	cur.state.selfRating = rating
	return nil
}

// Answer consumes one interaction with the current item.
//
// Teach items always move forward. On a quiz item a wrong answer re-presents
// the same item and counts one mistake, except inside an error-retry phase
// where repeated failure stays in immediate retry without further counting.
// A correct answer on a quiz or retry item is the entity's terminal step: the
// hybrid quality score is computed once and buffered, and a missed entity
// gets one error-retry entry appended to the queue tail for a dedicated
// second pass later in the session.
func (q *Queue) Answer(correct bool) error {
	cur := q.Current()
	if cur == nil {
		return ErrQueueExhausted
	}

	if cur.Phase.IsTeach() {
		q.pos++
		return nil
	}

	if !correct {
		if cur.Phase != PhaseErrorRetry {
			cur.state.mistakeCount++
		}
		return nil
	}

	if !cur.state.scored {
		quality := hybridQuality(cur.state.selfRating, cur.state.mistakeCount)
		q.buffer.AddOutcome(cur.Entity.ID, quality)
		cur.state.scored = true

		if cur.state.mistakeCount > 0 && cur.Phase != PhaseErrorRetry && !cur.state.retryQueued {
			q.items = append(q.items, &SessionItem{
				Entity: cur.Entity,
				Phase:  PhaseErrorRetry,
				state:  cur.state,
			})
			cur.state.retryQueued = true
		}
	}

	q.pos++
	return nil
}

// Skip removes the current item's entity from the remainder of the queue
// entirely and records it as a skip signal. A skipped entity never produces
// a quality-score submission, even if its quiz had already scored.
func (q *Queue) Skip() error {
	cur := q.Current()
	if cur == nil {
		return ErrQueueExhausted
	}

	entityID := cur.Entity.ID

	kept := q.items[:q.pos]
	for _, it := range q.items[q.pos:] {
		if it.Entity.ID != entityID {
			kept = append(kept, it)
		}
	}
	q.items = kept

	q.buffer.DropOutcome(entityID)
	q.buffer.AddSkip(entityID)
	return nil
}

// hybridQuality blends the subjective self-rating with the objective mistake
// count into the single quality value submitted for scheduling. An uncaptured
// rating defaults to the middle row.
func hybridQuality(rating, mistakes int) spaced_repetition.Quality {
	if rating == 0 {
		rating = 3
	}

	switch rating {
	case 5:
		switch {
		case mistakes == 0:
			return 5
		case mistakes == 1:
			return 4
		default:
			return 3
		}
	case 3:
		if mistakes == 0 {
			return 3
		}
		return 2
	default:
		// A "forgot" self-report dominates regardless of quiz performance.
		return 1
	}
}
