// Package session builds and runs the daily learning session: an ordered,
// multi-phase queue mixing due reviews and fresh material, with deferred
// best-effort result submission.
package session

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/example/lingobot/internal/access"
	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/pkg/models"
)

// MemoryStore is the slice of the review store the manager consumes.
type MemoryStore interface {
	OutcomeSink
	GetOrCreate(ctx context.Context, userID int64, entityType models.EntityType, entityID int64, locked bool) (*models.MemoryRecord, error)
	DueToday(ctx context.Context, userID int64, entityType models.EntityType, limit int) ([]models.MemoryRecord, error)
}

// EntitySource supplies curriculum entities and quiz distractors.
type EntitySource interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Entity, error)
	NewForUser(ctx context.Context, userID int64, entityType models.EntityType, limit int) ([]models.Entity, error)
	DistractorTranslations(ctx context.Context, entityType models.EntityType, excludeID int64, count int) ([]string, error)
}

// AccessChecker authorizes module entry before a session is built.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID int64, module models.ModuleType) (access.Decision, error)
}

// PrefsSource supplies per-user settings. May be nil; the configured defaults
// apply then.
type PrefsSource interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// ModuleLockedError is the typed "module locked" outcome. It is an expected,
// user-facing result carrying the gating progress, not a system fault.
type ModuleLockedError struct {
	Module   models.ModuleType
	Decision access.Decision
}

func (e *ModuleLockedError) Error() string {
	return e.Decision.Reason
}

// Summary reports the composition of a built session.
type Summary struct {
	ReviewCount int `json:"review_count"`
	NewCount    int `json:"new_count"`
}

// Session is one user's active learning session. It owns the queue and the
// result buffer; it is constructed per session and discarded at session end.
type Session struct {
	UserID     int64
	EntityType models.EntityType
	Queue      *Queue
	Summary    Summary

	flusher *Flusher
}

// Finish flushes the buffered results after the queue is exhausted.
func (s *Session) Finish(ctx context.Context) {
	s.flusher.Flush(ctx, s.UserID, s.EntityType, s.Queue.Buffer())
}

// Abandon flushes whatever was buffered so far. Partial progress is
// preserved, never rolled back.
func (s *Session) Abandon(ctx context.Context) {
	s.flusher.Flush(ctx, s.UserID, s.EntityType, s.Queue.Buffer())
}

// Manager wires the gate, the memory store and the curriculum into sessions.
type Manager struct {
	store    MemoryStore
	entities EntitySource
	gate     AccessChecker
	prefs    PrefsSource
	cfg      config.Session
	log      *zap.Logger
}

// NewManager creates a session manager. prefs may be nil.
func NewManager(cfg *config.Config, store MemoryStore, entities EntitySource, gate AccessChecker, prefs PrefsSource, log *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		entities: entities,
		gate:     gate,
		prefs:    prefs,
		cfg:      cfg.Session,
		log:      log,
	}
}

// FetchTodaySession authorizes the request, gathers today's due entities plus
// (optionally) fresh ones up to the daily cap, and builds the session queue.
// A locked module surfaces as *ModuleLockedError.
func (m *Manager) FetchTodaySession(ctx context.Context, userID int64, entityType models.EntityType, limit int, includeNew bool) (*Session, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if !models.ValidEntityType(entityType) {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
	if limit <= 0 || limit > m.cfg.ReviewLimit {
		limit = m.cfg.ReviewLimit
	}

	module := moduleFor(entityType)
	decision, err := m.gate.CheckAccess(ctx, userID, module)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &ModuleLockedError{Module: module, Decision: decision}
	}

	due, err := m.store.DueToday(ctx, userID, entityType, limit)
	if err != nil {
		return nil, err
	}

	reviews, err := m.resolveEntities(ctx, due)
	if err != nil {
		return nil, err
	}

	var fresh []models.Entity
	if includeNew {
		fresh, err = m.entities.NewForUser(ctx, userID, entityType, m.dailyNewCap(ctx, userID))
		if err != nil {
			return nil, err
		}
		// First access creates the memory record so the entity is tracked
		// even when the session is abandoned before its quiz.
		for _, e := range fresh {
			if _, err := m.store.GetOrCreate(ctx, userID, entityType, e.ID, false); err != nil {
				return nil, err
			}
		}
	}

	queue := BuildQueue(reviews, fresh)

	return &Session{
		UserID:     userID,
		EntityType: entityType,
		Queue:      queue,
		Summary:    Summary{ReviewCount: len(reviews), NewCount: len(fresh)},
		flusher:    NewFlusher(m.store, m.log),
	}, nil
}

// QuizOptions builds a shuffled multiple-choice option set for an item,
// returning the options and the index of the correct one.
func (m *Manager) QuizOptions(ctx context.Context, item *SessionItem, count int) ([]string, int, error) {
	distractors, err := m.entities.DistractorTranslations(ctx, item.Entity.EntityType, item.Entity.ID, count-1)
	if err != nil {
		return nil, 0, err
	}

	options := append(distractors, item.Entity.Translation)
	correct := len(options) - 1

	rand.Shuffle(len(options), func(i, j int) {
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
		options[i], options[j] = options[j], options[i]
	})

	return options, correct, nil
}

// resolveEntities maps due records to their curriculum entities, preserving
// the earliest-due-first order. Records whose entity vanished from the
// curriculum are dropped.
func (m *Manager) resolveEntities(ctx context.Context, records []models.MemoryRecord) ([]models.Entity, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.EntityID)
	}

	byID, err := m.entities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Entity, 0, len(records))
	for _, rec := range records {
		if e, ok := byID[rec.EntityID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// dailyNewCap returns the user's fresh-material cap, bounded by the
// configured ceiling.
func (m *Manager) dailyNewCap(ctx context.Context, userID int64) int {
	limit := m.cfg.DailyNewCap
	if m.prefs == nil {
		return limit
	}

	user, err := m.prefs.GetByTelegramID(ctx, userID)
	if err != nil {
		return limit
	}
	if user.ItemsPerDay > 0 && user.ItemsPerDay < limit {
		return user.ItemsPerDay
	}
	return limit
}

// moduleFor maps an entity type to the module that gates it.
func moduleFor(entityType models.EntityType) models.ModuleType {
	switch entityType {
	case models.EntityWord:
		return models.ModuleWord
	case models.EntitySentence:
		return models.ModuleSentence
	}
	return models.ModuleLetter
}
