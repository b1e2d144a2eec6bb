package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStreakDefaults(t *testing.T) {
	today := day(t, "2026-01-01")
	st := New("g1", "u1", today)

	assert.True(t, st.Active)
	assert.Equal(t, MaxFreezes, st.Freezes)
	assert.Equal(t, today, st.CreationDate)
	assert.Nil(t, st.EndDate)
	assert.NotEqual(t, st.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestDateOfNormalizesAcrossZones(t *testing.T) {
	// 22:30 on Jan 1 in UTC-6 is already Jan 2 in UTC. The calendar day in
	// the bot's zone is what counts.
	mountain := time.FixedZone("streak", -6*3600)
	late := time.Date(2026, 1, 1, 22, 30, 0, 0, mountain)

	assert.Equal(t, day(t, "2026-01-01"), DateOf(late))
	assert.Equal(t, day(t, "2026-01-02"), DateOf(late.UTC()))
}

func TestDurationCountsInclusiveDays(t *testing.T) {
	st := New("g1", "u1", day(t, "2026-01-01"))

	assert.Equal(t, 1, st.Duration(day(t, "2026-01-01")), "a streak created today is 1 day long")
	assert.Equal(t, 5, st.Duration(day(t, "2026-01-05")))

	st.Terminate(day(t, "2026-01-03"))
	assert.Equal(t, 3, st.Duration(day(t, "2026-01-05")), "ended streaks measure to their end date")
}

func TestDayOfStreak(t *testing.T) {
	st := New("g1", "u1", day(t, "2026-01-01"))

	assert.Equal(t, 1, st.DayOfStreak(day(t, "2026-01-01")))
	assert.Equal(t, 4, st.DayOfStreak(day(t, "2026-01-04")))
}

func TestTerminateIsIdempotent(t *testing.T) {
	st := New("g1", "u1", day(t, "2026-01-01"))

	st.Terminate(day(t, "2026-01-03"))
	require.NotNil(t, st.EndDate)
	first := *st.EndDate

	st.Terminate(day(t, "2026-01-09"))
	assert.Equal(t, first, *st.EndDate)
	assert.False(t, st.Active)
}

func TestLatestSubmittedOn(t *testing.T) {
	today := day(t, "2026-01-07")

	assert.False(t, LatestSubmittedOn(nil, today))
	assert.True(t, LatestSubmittedOn(&Submission{CreationDate: today}, today.AddDate(0, 0, -1), today))
	assert.False(t, LatestSubmittedOn(&Submission{CreationDate: today.AddDate(0, 0, -3)}, today.AddDate(0, 0, -1), today))
}
