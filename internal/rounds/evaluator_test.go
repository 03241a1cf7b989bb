package rounds

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingobot/internal/config"
	"github.com/example/lingobot/internal/database"
	"github.com/example/lingobot/pkg/models"
)

type resultKey struct {
	userID int64
	lesson string
	round  int
}

type fakeRoundRepo struct {
	states  map[int64]*models.RoundState
	results map[resultKey]*models.RoundResult
}

func newFakeRoundRepo() *fakeRoundRepo {
	return &fakeRoundRepo{
		states:  map[int64]*models.RoundState{},
		results: map[resultKey]*models.RoundResult{},
	}
}

func (f *fakeRoundRepo) GetState(_ context.Context, userID int64) (*models.RoundState, error) {
	state, ok := f.states[userID]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	cp := *state
	return &cp, nil
}

func (f *fakeRoundRepo) SaveState(_ context.Context, state *models.RoundState) error {
	cp := *state
	f.states[state.UserID] = &cp
	return nil
}

func (f *fakeRoundRepo) UpsertResult(_ context.Context, result *models.RoundResult) error {
	cp := *result
	f.results[resultKey{result.UserID, result.LessonID, result.RoundNumber}] = &cp
	return nil
}

func (f *fakeRoundRepo) HistoryByLesson(_ context.Context, userID int64, lessonID string) ([]models.RoundResult, error) {
	var history []models.RoundResult
	for key, res := range f.results {
		if key.userID == userID && key.lesson == lessonID {
			history = append(history, *res)
		}
	}
	sort.Slice(history, func(i, j int) bool { return history[i].RoundNumber < history[j].RoundNumber })
	return history, nil
}

type fakeMarker struct {
	completed []models.ModuleType
}

func (f *fakeMarker) MarkCompleted(_ context.Context, _ int64, module models.ModuleType) (*models.ModuleProgress, error) {
	f.completed = append(f.completed, module)
	return &models.ModuleProgress{}, nil
}

func newTestEvaluator(repo Repo, gate CompletionMarker) *Evaluator {
	return New(config.Default(), repo, gate)
}

func TestSubmitRoundPassAdvances(t *testing.T) {
	eval := newTestEvaluator(newFakeRoundRepo(), nil)

	out, err := eval.SubmitRound(context.Background(), 1, "word-food-1", 1, 20, 18)
	require.NoError(t, err)

	assert.True(t, out.Result.Passed)
	assert.InDelta(t, 0.9, out.Result.Accuracy, 1e-9)
	assert.Equal(t, 2, out.NextRound)
}

func TestSubmitRoundFailStaysPut(t *testing.T) {
	eval := newTestEvaluator(newFakeRoundRepo(), nil)

	out, err := eval.SubmitRound(context.Background(), 1, "word-food-1", 1, 20, 17)
	require.NoError(t, err)

	assert.False(t, out.Result.Passed)
	assert.InDelta(t, 0.85, out.Result.Accuracy, 1e-9)
	assert.Equal(t, 1, out.NextRound)
}

func TestResubmissionReplacesResult(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRoundRepo()
	eval := newTestEvaluator(repo, nil)

	_, err := eval.SubmitRound(ctx, 1, "word-food-1", 1, 20, 10)
	require.NoError(t, err)
	_, err = eval.SubmitRound(ctx, 1, "word-food-1", 1, 20, 19)
	require.NoError(t, err)

	history, err := eval.History(ctx, 1, "word-food-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 19, history[0].CorrectCount)
	assert.True(t, history[0].Passed)
}

func TestAdvanceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	eval := newTestEvaluator(newFakeRoundRepo(), nil)

	_, err := eval.SubmitRound(ctx, 1, "word-food-1", 1, 10, 10)
	require.NoError(t, err)
	out, err := eval.SubmitRound(ctx, 1, "word-food-1", 2, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NextRound)

	// Replaying an earlier round never moves the pointer back.
	out, err = eval.SubmitRound(ctx, 1, "word-food-1", 1, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NextRound)
}

func TestFinalRoundCapsAndCertifies(t *testing.T) {
	ctx := context.Background()
	marker := &fakeMarker{}
	eval := newTestEvaluator(newFakeRoundRepo(), marker)

	out, err := eval.SubmitRound(ctx, 1, "letter-basics-1", 3, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, out.NextRound)
	require.Len(t, marker.completed, 1)
	assert.Equal(t, models.ModuleLetter, marker.completed[0])
}

func TestFinalRoundFailDoesNotCertify(t *testing.T) {
	marker := &fakeMarker{}
	eval := newTestEvaluator(newFakeRoundRepo(), marker)

	_, err := eval.SubmitRound(context.Background(), 1, "letter-basics-1", 3, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, marker.completed)
}

func TestUnknownLessonPrefixSkipsCertification(t *testing.T) {
	marker := &fakeMarker{}
	eval := newTestEvaluator(newFakeRoundRepo(), marker)

	_, err := eval.SubmitRound(context.Background(), 1, "misc-review", 3, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, marker.completed)
}

func TestCurrentRoundStartsAtOne(t *testing.T) {
	ctx := context.Background()
	eval := newTestEvaluator(newFakeRoundRepo(), nil)

	round, err := eval.CurrentRound(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, round)

	_, err = eval.SubmitRound(ctx, 1, "word-food-1", 1, 10, 10)
	require.NoError(t, err)

	round, err = eval.CurrentRound(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, round)
}

func TestZeroQuestionsNeverPass(t *testing.T) {
	eval := newTestEvaluator(newFakeRoundRepo(), nil)

	out, err := eval.SubmitRound(context.Background(), 1, "word-food-1", 1, 0, 0)
	require.NoError(t, err)
	assert.False(t, out.Result.Passed)
	assert.Equal(t, 0.0, out.Result.Accuracy)
}

func TestSubmitRoundValidation(t *testing.T) {
	eval := newTestEvaluator(newFakeRoundRepo(), nil)
	ctx := context.Background()

	_, err := eval.SubmitRound(ctx, 0, "word-food-1", 1, 10, 5)
	assert.Error(t, err)

	_, err = eval.SubmitRound(ctx, 1, "", 1, 10, 5)
	assert.Error(t, err)

	_, err = eval.SubmitRound(ctx, 1, "word-food-1", 4, 10, 5)
	assert.Error(t, err)

	_, err = eval.SubmitRound(ctx, 1, "word-food-1", 0, 10, 5)
	assert.Error(t, err)

	_, err = eval.SubmitRound(ctx, 1, "word-food-1", 1, 10, 11)
	assert.Error(t, err)
}
