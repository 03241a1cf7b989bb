package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, 2.5, cfg.SRS.InitialEasiness)
	assert.Equal(t, 1.3, cfg.SRS.EasinessFloor)
	assert.Equal(t, 180, cfg.SRS.MaxIntervalDays)
	assert.Equal(t, 0.5, cfg.SRS.FuzzyShrink)
	assert.Equal(t, []int{1, 2, 4, 7, 14}, cfg.SRS.EarlyIntervals)

	assert.Equal(t, 0.8, cfg.Gates.WordUnlockThreshold)
	assert.Equal(t, 0.9, cfg.Rounds.PassThreshold)
	assert.Equal(t, 3, cfg.Rounds.MaxRounds)
	assert.Equal(t, 20, cfg.Session.ReviewLimit)
	assert.Equal(t, 10, cfg.Session.DailyNewCap)

	assert.Equal(t, "sqlite3", cfg.DB.Driver)
}
