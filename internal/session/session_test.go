package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/lingobot/internal/access"
	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/pkg/models"
)

type fakeStore struct {
	fakeSink
	due     []models.MemoryRecord
	created []int64
}

func (f *fakeStore) GetOrCreate(_ context.Context, userID int64, entityType models.EntityType, entityID int64, locked bool) (*models.MemoryRecord, error) {
	f.created = append(f.created, entityID)
	return &models.MemoryRecord{UserID: userID, EntityType: entityType, EntityID: entityID, IsLocked: locked}, nil
}

func (f *fakeStore) DueToday(_ context.Context, _ int64, _ models.EntityType, limit int) ([]models.MemoryRecord, error) {
	if limit > 0 && len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

type fakeEntities struct {
	byID        map[int64]models.Entity
	fresh       []models.Entity
	distractors []string
}

func (f *fakeEntities) GetByIDs(_ context.Context, ids []int64) (map[int64]models.Entity, error) {
	out := map[int64]models.Entity{}
	for _, id := range ids {
		if e, ok := f.byID[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (f *fakeEntities) NewForUser(_ context.Context, _ int64, _ models.EntityType, limit int) ([]models.Entity, error) {
	if limit > 0 && len(f.fresh) > limit {
		return f.fresh[:limit], nil
	}
	return f.fresh, nil
}

func (f *fakeEntities) DistractorTranslations(_ context.Context, _ models.EntityType, _ int64, count int) ([]string, error) {
	if count > len(f.distractors) {
		count = len(f.distractors)
	}
	return f.distractors[:count], nil
}

type fakeChecker struct {
	decision access.Decision
}

func (f *fakeChecker) CheckAccess(_ context.Context, _ int64, _ models.ModuleType) (access.Decision, error) {
	return f.decision, nil
}

func dueRecord(entityID int64, dueAt time.Time) models.MemoryRecord {
	return models.MemoryRecord{UserID: 1, EntityType: models.EntityWord, EntityID: entityID, NextReviewAt: &dueAt}
}

func entity(id int64, translation string) models.Entity {
	return models.Entity{ID: id, EntityType: models.EntityWord, Translation: translation}
}

type fakePrefs struct {
	itemsPerDay int
}

func (f *fakePrefs) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	return &models.User{ID: telegramID, ItemsPerDay: f.itemsPerDay}, nil
}

func newTestManager(store *fakeStore, entities *fakeEntities, checker AccessChecker) *Manager {
	return NewManager(config.Default(), store, entities, checker, nil, zap.NewNop())
}

func TestFetchTodaySessionBuildsQueue(t *testing.T) {
	now := time.Now()
	store := &fakeStore{due: []models.MemoryRecord{dueRecord(1, now), dueRecord(2, now)}}
	entities := &fakeEntities{
		byID:  map[int64]models.Entity{1: entity(1, "a"), 2: entity(2, "b")},
		fresh: []models.Entity{entity(10, "c")},
	}
	mgr := newTestManager(store, entities, &fakeChecker{decision: access.Decision{Allowed: true}})

	sess, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 20, true)
	require.NoError(t, err)

	assert.Equal(t, Summary{ReviewCount: 2, NewCount: 1}, sess.Summary)
	assert.Equal(t, 6, sess.Queue.Remaining())
	assert.Equal(t, PhaseReviewTeach, sess.Queue.Current().Phase)
	assert.Equal(t, int64(1), sess.Queue.Current().Entity.ID)

	// Fresh entities get their memory record at session build time.
	assert.Equal(t, []int64{10}, store.created)
}

func TestFetchTodaySessionWithoutNew(t *testing.T) {
	now := time.Now()
	store := &fakeStore{due: []models.MemoryRecord{dueRecord(1, now)}}
	entities := &fakeEntities{
		byID:  map[int64]models.Entity{1: entity(1, "a")},
		fresh: []models.Entity{entity(10, "c")},
	}
	mgr := newTestManager(store, entities, &fakeChecker{decision: access.Decision{Allowed: true}})

	sess, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 20, false)
	require.NoError(t, err)

	assert.Equal(t, Summary{ReviewCount: 1, NewCount: 0}, sess.Summary)
	assert.Empty(t, store.created)
}

func TestFetchTodaySessionLockedModule(t *testing.T) {
	checker := &fakeChecker{decision: access.Decision{
		Allowed:  false,
		Progress: 0.5,
		Reason:   "word module locked: letter progress 50% of the 80% required",
	}}
	mgr := newTestManager(&fakeStore{}, &fakeEntities{}, checker)

	_, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 20, true)

	var locked *ModuleLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, models.ModuleWord, locked.Module)
	assert.InDelta(t, 0.5, locked.Decision.Progress, 1e-9)
}

func TestFetchTodaySessionClampsLimit(t *testing.T) {
	now := time.Now()
	store := &fakeStore{}
	for i := int64(1); i <= 30; i++ {
		store.due = append(store.due, dueRecord(i, now))
	}
	entities := &fakeEntities{byID: map[int64]models.Entity{}}
	for i := int64(1); i <= 30; i++ {
		entities.byID[i] = entity(i, "t")
	}
	mgr := newTestManager(store, entities, &fakeChecker{decision: access.Decision{Allowed: true}})

	sess, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 500, false)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Session.ReviewLimit, sess.Summary.ReviewCount)
}

func TestFetchTodaySessionHonorsPerUserNewCap(t *testing.T) {
	store := &fakeStore{}
	entities := &fakeEntities{byID: map[int64]models.Entity{}}
	for i := int64(1); i <= 8; i++ {
		entities.fresh = append(entities.fresh, entity(i, "t"))
	}
	mgr := NewManager(config.Default(), store, entities, &fakeChecker{decision: access.Decision{Allowed: true}},
		&fakePrefs{itemsPerDay: 3}, zap.NewNop())

	sess, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 20, true)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Summary.NewCount)
}

func TestFetchTodaySessionDropsVanishedEntities(t *testing.T) {
	now := time.Now()
	store := &fakeStore{due: []models.MemoryRecord{dueRecord(1, now), dueRecord(99, now)}}
	entities := &fakeEntities{byID: map[int64]models.Entity{1: entity(1, "a")}}
	mgr := newTestManager(store, entities, &fakeChecker{decision: access.Decision{Allowed: true}})

	sess, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 20, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Summary.ReviewCount)
}

func TestFetchTodaySessionValidation(t *testing.T) {
	mgr := newTestManager(&fakeStore{}, &fakeEntities{}, &fakeChecker{decision: access.Decision{Allowed: true}})

	_, err := mgr.FetchTodaySession(context.Background(), 0, models.EntityWord, 20, false)
	assert.Error(t, err)

	_, err = mgr.FetchTodaySession(context.Background(), 1, "verb", 20, false)
	assert.Error(t, err)
}

func TestQuizOptionsContainCorrectAnswer(t *testing.T) {
	entities := &fakeEntities{distractors: []string{"x", "y", "z"}}
	mgr := newTestManager(&fakeStore{}, entities, &fakeChecker{decision: access.Decision{Allowed: true}})

	item := &SessionItem{Entity: entity(1, "right"), Phase: PhaseReviewQuiz, state: &itemState{}}
	options, correct, err := mgr.QuizOptions(context.Background(), item, 4)
	require.NoError(t, err)

	require.Len(t, options, 4)
	require.GreaterOrEqual(t, correct, 0)
	require.Less(t, correct, len(options))
	assert.Equal(t, "right", options[correct])
	assert.ElementsMatch(t, []string{"x", "y", "z", "right"}, options)
}

func TestSessionFinishFlushesOnce(t *testing.T) {
	now := time.Now()
	store := &fakeStore{due: []models.MemoryRecord{dueRecord(1, now)}}
	entities := &fakeEntities{byID: map[int64]models.Entity{1: entity(1, "a")}}
	mgr := newTestManager(store, entities, &fakeChecker{decision: access.Decision{Allowed: true}})

	sess, err := mgr.FetchTodaySession(context.Background(), 1, models.EntityWord, 20, false)
	require.NoError(t, err)

	require.NoError(t, sess.Queue.Answer(true))
	require.NoError(t, sess.Queue.Answer(true))
	require.True(t, sess.Queue.Done())

	sess.Finish(context.Background())
	sess.Abandon(context.Background())

	assert.Equal(t, 1, store.submitCalls)
	require.Len(t, store.outcomes, 1)
	assert.Equal(t, int64(1), store.outcomes[0].EntityID)
}
