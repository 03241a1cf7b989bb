package review

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/internal/spaced_repetition"
	"github.com/example/lingobot/pkg/models"
)

type recordKey struct {
	userID     int64
	entityType models.EntityType
	entityID   int64
}

// fakeMemoryRepo is an in-memory MemoryRepo. missReads makes the first N
// GetByKey calls report not-found to simulate a lost creation race.
type fakeMemoryRepo struct {
	mu        sync.Mutex
	records   map[recordKey]*models.MemoryRecord
	missReads int
	insertErr error
}

func newFakeMemoryRepo() *fakeMemoryRepo {
	return &fakeMemoryRepo{records: map[recordKey]*models.MemoryRecord{}}
}

func (f *fakeMemoryRepo) GetByKey(_ context.Context, userID int64, entityType models.EntityType, entityID int64) (*models.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.missReads > 0 {
		f.missReads--
		return nil, database.ErrRecordNotFound
	}
	rec, ok := f.records[recordKey{userID, entityType, entityID}]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeMemoryRepo) Insert(_ context.Context, rec *models.MemoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return f.insertErr
	}
	key := recordKey{rec.UserID, rec.EntityType, rec.EntityID}
	if _, exists := f.records[key]; exists {
		return fmt.Errorf("UNIQUE constraint failed: memory_records")
	}
	cp := *rec
	f.records[key] = &cp
	return nil
}

func (f *fakeMemoryRepo) Update(_ context.Context, rec *models.MemoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *rec
	f.records[recordKey{rec.UserID, rec.EntityType, rec.EntityID}] = &cp
	return nil
}

func (f *fakeMemoryRepo) DueToday(_ context.Context, userID int64, entityType models.EntityType, now time.Time, limit int) ([]models.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due []models.MemoryRecord
	for key, rec := range f.records {
		if key.userID != userID || key.entityType != entityType {
			continue
		}
		if rec.Due(now) {
			due = append(due, *rec)
		}
	}
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

type fakeSkipRepo struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeSkipRepo) Record(_ context.Context, _ int64, _ models.EntityType, entityIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, entityIDs...)
	return nil
}

func newTestStore(repo MemoryRepo, skips SkipRepo) *Store {
	s := NewStore(config.Default(), repo, skips)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestGetOrCreateDefaults(t *testing.T) {
	repo := newFakeMemoryRepo()
	store := newTestStore(repo, &fakeSkipRepo{})

	rec, err := store.GetOrCreate(context.Background(), 1, models.EntityWord, 42, false)
	require.NoError(t, err)

	assert.Equal(t, 0.0, rec.MasteryLevel)
	assert.Equal(t, 0, rec.ReviewStage)
	assert.Equal(t, 2.5, rec.EasinessFactor)
	assert.Equal(t, 1, rec.IntervalDays)
	assert.False(t, rec.IsLocked)
	require.NotNil(t, rec.NextReviewAt)
	assert.Equal(t, store.now().Add(24*time.Hour), *rec.NextReviewAt)
}

func TestGetOrCreateLockedHasNoReviewDate(t *testing.T) {
	repo := newFakeMemoryRepo()
	store := newTestStore(repo, &fakeSkipRepo{})

	rec, err := store.GetOrCreate(context.Background(), 1, models.EntitySentence, 7, true)
	require.NoError(t, err)

	assert.True(t, rec.IsLocked)
	assert.Nil(t, rec.NextReviewAt)
}

func TestGetOrCreateReturnsExisting(t *testing.T) {
	repo := newFakeMemoryRepo()
	store := newTestStore(repo, &fakeSkipRepo{})

	first, err := store.GetOrCreate(context.Background(), 1, models.EntityWord, 42, false)
	require.NoError(t, err)
	first.MasteryLevel = 0.6
	require.NoError(t, repo.Update(context.Background(), first))

	again, err := store.GetOrCreate(context.Background(), 1, models.EntityWord, 42, false)
	require.NoError(t, err)
	assert.Equal(t, 0.6, again.MasteryLevel)
}

func TestGetOrCreateLostRaceFallsBackToRead(t *testing.T) {
	repo := newFakeMemoryRepo()
	store := newTestStore(repo, &fakeSkipRepo{})

	// Another writer already owns the row, but the first read misses it.
	winner := &models.MemoryRecord{UserID: 1, EntityType: models.EntityWord, EntityID: 42, MasteryLevel: 0.4}
	repo.records[recordKey{1, models.EntityWord, 42}] = winner
	repo.missReads = 1

	rec, err := store.GetOrCreate(context.Background(), 1, models.EntityWord, 42, false)
	require.NoError(t, err)
	assert.Equal(t, 0.4, rec.MasteryLevel)
}

func TestGetOrCreateValidatesInput(t *testing.T) {
	store := newTestStore(newFakeMemoryRepo(), &fakeSkipRepo{})

	_, err := store.GetOrCreate(context.Background(), 0, models.EntityWord, 42, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = store.GetOrCreate(context.Background(), 1, "verb", 42, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = store.GetOrCreate(context.Background(), 1, models.EntityWord, 0, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordOutcomeMasteryTiers(t *testing.T) {
	tests := []struct {
		name    string
		quality spaced_repetition.Quality
		start   float64
		want    float64
	}{
		{"high quality adds 0.2", 5, 0.5, 0.7},
		{"quality four adds 0.2", 4, 0.5, 0.7},
		{"fuzzy adds 0.05", 3, 0.5, 0.55},
		{"quality two adds 0.05", 2, 0.5, 0.55},
		{"forgot subtracts 0.15", 1, 0.5, 0.35},
		{"clamped at one", 5, 0.95, 1.0},
		{"clamped at zero", 1, 0.1, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeMemoryRepo()
			store := newTestStore(repo, &fakeSkipRepo{})

			seed, err := store.GetOrCreate(context.Background(), 1, models.EntityWord, 42, false)
			require.NoError(t, err)
			seed.MasteryLevel = tt.start
			require.NoError(t, repo.Update(context.Background(), seed))

			rec, err := store.RecordOutcome(context.Background(), 1, models.EntityWord, 42, tt.quality)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, rec.MasteryLevel, 1e-9)
		})
	}
}

func TestRecordOutcomeUpdatesCountersAndSchedule(t *testing.T) {
	repo := newFakeMemoryRepo()
	store := newTestStore(repo, &fakeSkipRepo{})
	ctx := context.Background()

	rec, err := store.RecordOutcome(ctx, 1, models.EntityWord, 42, spaced_repetition.QualityRemembered)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CorrectCount)
	assert.Equal(t, 1, rec.StreakCorrect)
	assert.Equal(t, 1, rec.ReviewStage)
	require.NotNil(t, rec.LastReviewAt)
	require.NotNil(t, rec.NextReviewAt)
	assert.Equal(t, store.now().AddDate(0, 0, rec.IntervalDays), *rec.NextReviewAt)

	rec, err = store.RecordOutcome(ctx, 1, models.EntityWord, 42, spaced_repetition.QualityForgot)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.WrongCount)
	assert.Equal(t, 0, rec.StreakCorrect)
	assert.Equal(t, 0, rec.ReviewStage)
	assert.Equal(t, 1, rec.IntervalDays)
}

func TestRecordOutcomeRejectsInvalidQuality(t *testing.T) {
	store := newTestStore(newFakeMemoryRepo(), &fakeSkipRepo{})

	_, err := store.RecordOutcome(context.Background(), 1, models.EntityWord, 42, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitOutcomesRecordsAll(t *testing.T) {
	repo := newFakeMemoryRepo()
	store := newTestStore(repo, &fakeSkipRepo{})

	outcomes := []Outcome{
		{EntityID: 1, Quality: 5},
		{EntityID: 2, Quality: 3},
		{EntityID: 3, Quality: 1},
	}
	err := store.SubmitOutcomes(context.Background(), 1, models.EntityWord, outcomes)
	require.NoError(t, err)

	for _, o := range outcomes {
		rec, err := repo.GetByKey(context.Background(), 1, models.EntityWord, o.EntityID)
		require.NoError(t, err)
		require.NotNil(t, rec.LastReviewAt)
	}
}

func TestSubmitOutcomesJoinsErrors(t *testing.T) {
	store := newTestStore(newFakeMemoryRepo(), &fakeSkipRepo{})

	err := store.SubmitOutcomes(context.Background(), 1, models.EntityWord, []Outcome{
		{EntityID: 1, Quality: 5},
		{EntityID: 2, Quality: 9},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitSkipped(t *testing.T) {
	skips := &fakeSkipRepo{}
	store := newTestStore(newFakeMemoryRepo(), skips)

	require.NoError(t, store.SubmitSkipped(context.Background(), 1, models.EntityWord, []int64{5, 6}))
	assert.Equal(t, []int64{5, 6}, skips.calls)

	require.NoError(t, store.SubmitSkipped(context.Background(), 1, models.EntityWord, nil))
	assert.Len(t, skips.calls, 2)
}
