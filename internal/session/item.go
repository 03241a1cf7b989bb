package session

import "github.com/example/lingobot/pkg/models"

// Phase tags a queue entry with its pedagogical step. The set is closed so
// the rating-propagation and retry logic can match on it exhaustively.
type Phase int

const (
	// PhaseReviewTeach shows a due entity before quizzing it
	PhaseReviewTeach Phase = iota
	// PhaseReviewQuiz checks recall of a due entity
	PhaseReviewQuiz
	// PhaseNewTeach introduces an entity seen for the first time
	PhaseNewTeach
	// PhaseNewQuiz checks acquisition of a fresh entity
	PhaseNewQuiz
	// PhaseErrorRetry is the dedicated second pass for an entity missed earlier
	PhaseErrorRetry
)

// String returns the phase tag name.
func (p Phase) String() string {
	switch p {
	case PhaseReviewTeach:
		return "review-teach"
	case PhaseReviewQuiz:
		return "review-quiz"
	case PhaseNewTeach:
		return "new-teach"
	case PhaseNewQuiz:
		return "new-quiz"
	case PhaseErrorRetry:
		return "error-retry"
	}
	return "unknown"
}

// IsTeach reports whether the phase only displays content.
func (p Phase) IsTeach() bool {
	return p == PhaseReviewTeach || p == PhaseNewTeach
}

// IsQuiz reports whether the phase checks an answer.
func (p Phase) IsQuiz() bool {
	return p == PhaseReviewQuiz || p == PhaseNewQuiz || p == PhaseErrorRetry
}

// itemState is the mistake/rating container shared by every queue entry of
// one entity within a session. Durable effects leave through the result
// buffer only; this state dies with the session.
type itemState struct {
	selfRating   int // 1, 3 or 5; 0 while uncaptured
	mistakeCount int
	scored       bool // terminal score already buffered
	retryQueued  bool // an error-retry entry was already appended
}

// SessionItem wraps one curriculum entity with its phase tag. Teach and quiz
// entries of the same entity share their state container, which is how a
// self-rating captured on the teach step reaches the quiz's terminal scoring.
type SessionItem struct {
	Entity models.Entity
	Phase  Phase

	state *itemState
}

// SelfRating returns the captured self-rating, or 0 when none was given.
func (it *SessionItem) SelfRating() int {
	return it.state.selfRating
}

// MistakeCount returns how many wrong answers this entity has accumulated.
func (it *SessionItem) MistakeCount() int {
	return it.state.mistakeCount
}
