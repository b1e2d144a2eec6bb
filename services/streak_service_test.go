package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artstreakbot/internal/gateway"
	"artstreakbot/internal/store"
	"artstreakbot/internal/testutil"
	"artstreakbot/internal/types/streak"
)

type streakFixture struct {
	store *store.MemoryStore
	gw    *testutil.FakeGateway
	svc   *StreakService
	now   time.Time
}

// newStreakFixture wires the service against the in-memory store with a
// controllable clock in the bot's UTC-6 reference zone.
func newStreakFixture(t *testing.T) *streakFixture {
	t.Helper()
	ms := store.NewMemoryStore()
	gw := testutil.NewFakeGateway()
	loc := time.FixedZone("streak", -6*3600)
	svc := NewStreakService(ms, NewNotifierService(ms, gw), gw, loc, time.Sunday)

	f := &streakFixture{store: ms, gw: gw, svc: svc}
	svc.now = func() time.Time { return f.now }
	f.setDay(t, "2026-01-05") // a Monday
	return f
}

// setDay moves the clock to noon of the given day in the bot's zone.
func (f *streakFixture) setDay(t *testing.T, value string) {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	f.now = time.Date(d.Year(), d.Month(), d.Day(), 18, 0, 0, 0, time.UTC)
}

func (f *streakFixture) day(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return streak.DateOf(d)
}

func (f *streakFixture) addGuild(t *testing.T, guildID, artChannelID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateGuild(ctx, guildID))
	if artChannelID != "" {
		require.NoError(t, f.store.SetArtChannel(ctx, guildID, artChannelID))
	}
}

// seedStreak plants a streak whose only submission is on its creation day.
func (f *streakFixture) seedStreak(t *testing.T, guildID, userID string, created time.Time) *streak.Streak {
	t.Helper()
	st := streak.New(guildID, userID, created)
	sub := &streak.Submission{
		ID:           uuid.New(),
		StreakID:     st.ID,
		UserID:       userID,
		CreationDate: created,
		MessageLink:  "https://chat.example/seed",
	}
	require.NoError(t, f.store.AppendSubmission(context.Background(), st, true, sub))
	return st
}

func imageSubmission(guildID, userID string) *gateway.CommandEvent {
	return &gateway.CommandEvent{
		Command:   "submitart",
		GuildID:   guildID,
		ChannelID: "chan-1",
		UserID:    userID,
		Attachment: &gateway.Attachment{
			URL:         "https://cdn.example/a.png",
			Filename:    "a.png",
			ContentType: "image/png",
		},
	}
}

func TestCheckStreaksRunsOncePerDay(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-05"))

	f.setDay(t, "2026-01-07")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))

	got, err := f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes-1, got.Freezes)

	// Second run on the same day is a no-op.
	require.NoError(t, f.svc.CheckStreaks(ctx, false))
	got, err = f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes-1, got.Freezes)

	// Forcing bypasses the run marker.
	require.NoError(t, f.svc.CheckStreaks(ctx, true))
	got, err = f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes-2, got.Freezes)
}

func TestCheckStreaksSeedsRunMarkerOnFirstRun(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)

	_, err := f.store.LastRunDate(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.svc.CheckStreaks(ctx, false))

	last, err := f.store.LastRunDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.day(t, "2026-01-05"), last)
}

func TestCheckStreaksLifecycleOverAWeek(t *testing.T) {
	// A streak begun Monday with a single submission: Tuesday's check passes
	// on yesterday's art, Wednesday and Thursday each burn a freeze, Friday
	// terminates it.
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-05"))

	f.setDay(t, "2026-01-06")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))
	got, err := f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes, got.Freezes)
	assert.Empty(t, f.gw.Sent())

	f.setDay(t, "2026-01-07")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))
	f.setDay(t, "2026-01-08")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))

	got, err = f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Freezes)

	sent := f.gw.Sent()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		assert.Equal(t, "art-1", msg.ChannelID)
		assert.Contains(t, msg.Content, "lost a freeze")
	}

	f.setDay(t, "2026-01-09")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))

	_, err = f.store.ActiveStreak(ctx, "g1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	sent = f.gw.Sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[2].Content, "art streak of 5 days has ended")
	assert.Contains(t, sent[2].Content, "not fulfilled in time")
}

func TestCheckStreaksEvaluatesUsersIndependently(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "fresh", f.day(t, "2026-01-06"))
	f.seedStreak(t, "g1", "stale", f.day(t, "2026-01-01"))

	f.setDay(t, "2026-01-07")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))

	fresh, err := f.store.ActiveStreak(ctx, "g1", "fresh")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes, fresh.Freezes)

	stale, err := f.store.ActiveStreak(ctx, "g1", "stale")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes-1, stale.Freezes)
}

func TestCheckStreaksCommitsBeforeAnnouncing(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-05"))
	f.gw.SendErr = errors.New("gateway down")

	f.setDay(t, "2026-01-07")
	require.NoError(t, f.svc.CheckStreaks(ctx, false))

	got, err := f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, streak.MaxFreezes-1, got.Freezes, "freeze loss sticks even when the announcement fails")
}

func TestPushReminderOnlyNudgesUnfulfilled(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "done", f.day(t, "2026-01-05"))
	f.seedStreak(t, "g1", "pending", f.day(t, "2026-01-04"))

	require.NoError(t, f.svc.PushReminder(ctx))

	sent := f.gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "art-1", sent[0].ChannelID)
	assert.Contains(t, sent[0].Content, "<@pending>")
}

func TestRecordSubmissionRejectsUnsupportedMedia(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")

	ev := imageSubmission("g1", "u1")
	ev.Attachment.ContentType = "video/mp4"
	assert.ErrorIs(t, f.svc.RecordSubmission(ctx, ev), streak.ErrUnsupportedMedia)

	ev.Attachment = nil
	assert.ErrorIs(t, f.svc.RecordSubmission(ctx, ev), streak.ErrUnsupportedMedia)

	assert.Empty(t, f.gw.Sent())
}

func TestRecordSubmissionAcceptsAudio(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")

	ev := imageSubmission("g1", "u1")
	ev.Attachment.ContentType = "audio/ogg"
	require.NoError(t, f.svc.RecordSubmission(ctx, ev))
}

func TestRecordSubmissionRequiresArtChannel(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "")

	var cfgErr *streak.ConfigError
	err := f.svc.RecordSubmission(ctx, imageSubmission("g1", "u1"))
	require.ErrorAs(t, err, &cfgErr)

	_, err = f.store.ActiveStreak(ctx, "g1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing is persisted without an art channel")
	assert.Empty(t, f.gw.Sent())
}

func TestRecordSubmissionUnknownGuild(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)

	var nfErr *streak.NotFoundError
	err := f.svc.RecordSubmission(ctx, imageSubmission("missing", "u1"))
	assert.ErrorAs(t, err, &nfErr)
}

func TestRecordSubmissionCreatesStreakAndRelaysArt(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")

	require.NoError(t, f.svc.RecordSubmission(ctx, imageSubmission("g1", "u1")))

	st, err := f.store.ActiveStreak(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, f.day(t, "2026-01-05"), st.CreationDate)
	assert.Equal(t, streak.MaxFreezes, st.Freezes)

	sent := f.gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "art-1", sent[0].ChannelID, "art is re-posted in the designated channel")
	assert.Equal(t, "Day 1 art streak submission by <@u1>.", sent[0].Content)
	require.NotNil(t, sent[0].Attachment)

	sub, err := f.store.LatestSubmission(ctx, st.ID)
	require.NoError(t, err)
	assert.Contains(t, sub.MessageLink, "art-1")
}

func TestRecordSubmissionDayNumberGrows(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-05"))

	f.setDay(t, "2026-01-07")
	require.NoError(t, f.svc.RecordSubmission(ctx, imageSubmission("g1", "u1")))

	sent := f.gw.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Day 3 art streak submission by <@u1>.", sent[0].Content)
}

func TestRecordSubmissionNotPersistedWhenRelayFails(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.gw.SendErr = errors.New("gateway down")

	err := f.svc.RecordSubmission(ctx, imageSubmission("g1", "u1"))
	require.Error(t, err)

	_, err = f.store.ActiveStreak(ctx, "g1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTerminateUserStreak(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-01"))

	require.NoError(t, f.svc.TerminateUserStreak(ctx, "g1", "u1"))

	_, err := f.store.ActiveStreak(ctx, "g1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	sent := f.gw.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Content, "art streak of 5 days has ended")
	assert.Contains(t, sent[0].Content, "cancelled by the user or an administrator")

	var nfErr *streak.NotFoundError
	assert.ErrorAs(t, f.svc.TerminateUserStreak(ctx, "g1", "u1"), &nfErr)
}

func TestTerminateCommitsBeforeAnnouncing(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-01"))
	f.gw.SendErr = errors.New("gateway down")

	require.NoError(t, f.svc.TerminateUserStreak(ctx, "g1", "u1"))

	_, err := f.store.ActiveStreak(ctx, "g1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStreakStats(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")

	old := f.seedStreak(t, "g1", "u1", f.day(t, "2025-12-20"))
	old.Terminate(f.day(t, "2025-12-28"))
	require.NoError(t, f.store.UpdateStreak(ctx, old))
	f.seedStreak(t, "g1", "u1", f.day(t, "2026-01-03"))

	stats, err := f.svc.StreakStats(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", stats.UserID)
	assert.Equal(t, 2, stats.StreakCount)
	assert.Equal(t, 2, stats.TotalSubmissions)
	assert.Equal(t, 9, stats.LongestStreak, "Dec 20 through Dec 28 inclusive")
	assert.True(t, stats.ActiveStreak)
	assert.Equal(t, 0, stats.DaysSinceLast)
}

func TestStreakStatsDaysSinceLast(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")

	old := f.seedStreak(t, "g1", "u1", f.day(t, "2025-12-20"))
	old.Terminate(f.day(t, "2025-12-28"))
	require.NoError(t, f.store.UpdateStreak(ctx, old))

	stats, err := f.svc.StreakStats(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.False(t, stats.ActiveStreak)
	assert.Equal(t, 8, stats.DaysSinceLast, "Dec 28 to Jan 5")
}

func TestStreakStatsNoHistory(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "art-1")

	var nfErr *streak.NotFoundError
	_, err := f.svc.StreakStats(ctx, "g1", "u1")
	assert.ErrorAs(t, err, &nfErr)
}

func TestDesignateArtChannel(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t)
	f.addGuild(t, "g1", "")

	require.NoError(t, f.svc.DesignateArtChannel(ctx, "g1", "art-9"))

	g, err := f.store.GetGuild(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, g.ArtChannelID)
	assert.Equal(t, "art-9", *g.ArtChannelID)

	var nfErr *streak.NotFoundError
	assert.ErrorAs(t, f.svc.DesignateArtChannel(ctx, "missing", "art-9"), &nfErr)
}
