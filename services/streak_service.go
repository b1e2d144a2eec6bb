package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"artstreakbot/internal/gateway"
	"artstreakbot/internal/store"
	"artstreakbot/internal/types/streak"
	"artstreakbot/middleware"
)

// StreakService owns the streak lifecycle: the daily check, the reminder
// pass, submission recording and termination. All persistence goes through
// the injected store handle; there is no ambient session state.
type StreakService struct {
	store    store.Store
	notifier *NotifierService
	gw       gateway.Gateway
	loc      *time.Location
	resetDay time.Weekday

	// now is swapped out by tests.
	now func() time.Time
}

func NewStreakService(st store.Store, notifier *NotifierService, gw gateway.Gateway, loc *time.Location, resetDay time.Weekday) *StreakService {
	return &StreakService{
		store:    st,
		notifier: notifier,
		gw:       gw,
		loc:      loc,
		resetDay: resetDay,
		now:      time.Now,
	}
}

// today is the current calendar date in the bot's reference zone.
func (s *StreakService) today() time.Time {
	return streak.DateOf(s.now().In(s.loc))
}

// CheckStreaks runs the daily evaluation over every active streak, at most
// once per calendar day unless forced. The run marker is advanced before the
// evaluation loop: a crash mid-pass forfeits the remaining evaluations for
// that day rather than risking a double run.
func (s *StreakService) CheckStreaks(ctx context.Context, force bool) error {
	today := s.today()

	last, err := s.store.LastRunDate(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to read run marker: %w", err)
		}
		// First ever run: seed the marker with yesterday so the pass proceeds.
		last = today.AddDate(0, 0, -1)
		log.Info().Msg("no run marker found, creating one")
	}
	if last.Equal(today) && !force {
		log.Info().Time("last_run", last).Msg("streaks already checked today, skipping")
		return nil
	}
	if err := s.store.SetLastRunDate(ctx, today); err != nil {
		return fmt.Errorf("failed to advance run marker: %w", err)
	}

	streaks, err := s.store.ActiveStreaks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active streaks: %w", err)
	}

	log.Info().Int("streaks", len(streaks)).Time("today", today).Msg("checking streaks")
	for _, st := range streaks {
		if err := s.evaluateOne(ctx, st, today); err != nil {
			// One streak's failure never aborts its siblings.
			log.Error().Err(err).Str("streak_id", st.ID.String()).Msg("streak evaluation failed")
		}
	}
	log.Info().Msg("streaks checked")
	return nil
}

func (s *StreakService) evaluateOne(ctx context.Context, st *streak.Streak, today time.Time) error {
	latest, err := s.store.LatestSubmission(ctx, st.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load latest submission: %w", err)
	}

	freezesBefore := st.Freezes
	outcome := streak.EvaluateDaily(st, latest, today, s.resetDay)
	middleware.IncStreakOutcome(outcome.String())

	// Persist any change, including a weekly refill on an otherwise
	// fulfilled day. The commit happens before the announcement goes out.
	if outcome != streak.OutcomeSkipped && (outcome != streak.OutcomeContinue || st.Freezes != freezesBefore) {
		if err := s.store.UpdateStreak(ctx, st); err != nil {
			return fmt.Errorf("failed to persist evaluation: %w", err)
		}
	}

	switch outcome {
	case streak.OutcomeFrozen:
		s.notifier.AnnounceFreezeLost(ctx, st)
	case streak.OutcomeTerminated:
		s.notifier.AnnounceTermination(ctx, st, streak.ReasonExpired, today)
	}
	return nil
}

// PushReminder nudges every streak owner who has not submitted today. Purely
// advisory: no state changes.
func (s *StreakService) PushReminder(ctx context.Context) error {
	today := s.today()

	streaks, err := s.store.ActiveStreaks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active streaks: %w", err)
	}

	for _, st := range streaks {
		latest, err := s.store.LatestSubmission(ctx, st.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("streak_id", st.ID.String()).Msg("reminder lookup failed")
			continue
		}
		if streak.ReminderDue(st, latest, today) {
			middleware.IncReminderSent()
			s.notifier.AnnounceReminder(ctx, st)
		}
	}
	return nil
}

// RecordSubmission appends today's submission to the invoker's active streak,
// creating the streak first if none exists. The guild must have a designated
// art channel; without one nothing is persisted. The attachment is relayed to
// the art channel with a day-of-streak caption and the resulting message link
// is stored with the submission.
func (s *StreakService) RecordSubmission(ctx context.Context, ev *gateway.CommandEvent) error {
	att := ev.Attachment
	if att == nil || !validMedia(att.ContentType) {
		return streak.ErrUnsupportedMedia
	}
	today := s.today()

	g, err := s.store.GetGuild(ctx, ev.GuildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &streak.NotFoundError{Msg: fmt.Sprintf("guild %s is not registered", ev.GuildID)}
		}
		return fmt.Errorf("failed to load guild: %w", err)
	}
	if g.ArtChannelID == nil {
		return &streak.ConfigError{Msg: "this guild has not designated an art channel"}
	}

	st, err := s.store.ActiveStreak(ctx, ev.GuildID, ev.UserID)
	created := false
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to look up active streak: %w", err)
		}
		st = streak.New(ev.GuildID, ev.UserID, today)
		created = true
	}

	caption := fmt.Sprintf("Day %d art streak submission by <@%s>.", st.DayOfStreak(today), ev.UserID)
	ref, err := s.gw.SendFile(ctx, *g.ArtChannelID, caption, att)
	if err != nil {
		return fmt.Errorf("failed to relay submission: %w", err)
	}

	sub := &streak.Submission{
		ID:           uuid.New(),
		StreakID:     st.ID,
		UserID:       ev.UserID,
		CreationDate: today,
		MessageLink:  ref.Link,
	}
	if err := s.store.AppendSubmission(ctx, st, created, sub); err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	middleware.IncSubmission()

	log.Info().Str("guild_id", ev.GuildID).Str("user_id", ev.UserID).
		Bool("new_streak", created).Int("day", st.DayOfStreak(today)).
		Msg("submission recorded")
	return nil
}

// TerminateUserStreak cancels a user's active streak on a guild, bypassing
// the fulfillment check. The store commit lands before the announcement.
func (s *StreakService) TerminateUserStreak(ctx context.Context, guildID, userID string) error {
	st, err := s.store.ActiveStreak(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &streak.NotFoundError{Msg: fmt.Sprintf("<@%s> has no active streak on this guild", userID)}
		}
		return fmt.Errorf("failed to look up active streak: %w", err)
	}

	today := s.today()
	st.Terminate(today)
	if err := s.store.UpdateStreak(ctx, st); err != nil {
		return fmt.Errorf("failed to terminate streak: %w", err)
	}
	middleware.IncStreakOutcome("cancelled")

	s.notifier.AnnounceTermination(ctx, st, streak.ReasonCancelled, today)
	return nil
}

// StreakStats aggregates a user's streak history on one guild.
func (s *StreakService) StreakStats(ctx context.Context, guildID, userID string) (*streak.Stats, error) {
	streaks, err := s.store.StreaksForUser(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streaks: %w", err)
	}
	if len(streaks) == 0 {
		return nil, &streak.NotFoundError{Msg: fmt.Sprintf("<@%s> has no streaks archived on this guild", userID)}
	}

	today := s.today()
	stats := &streak.Stats{UserID: userID, StreakCount: len(streaks)}

	stats.TotalSubmissions, err = s.store.CountSubmissions(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}

	var lastEnd *time.Time
	for _, st := range streaks {
		if d := st.Duration(today); d > stats.LongestStreak {
			stats.LongestStreak = d
		}
		if st.Active {
			stats.ActiveStreak = true
		} else if st.EndDate != nil && (lastEnd == nil || st.EndDate.After(*lastEnd)) {
			lastEnd = st.EndDate
		}
	}
	if !stats.ActiveStreak && lastEnd != nil {
		stats.DaysSinceLast = int(today.Sub(*lastEnd).Hours() / 24)
	}
	return stats, nil
}

// DesignateArtChannel points a guild's streak announcements at a channel.
func (s *StreakService) DesignateArtChannel(ctx context.Context, guildID, channelID string) error {
	if err := s.store.SetArtChannel(ctx, guildID, channelID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &streak.NotFoundError{Msg: fmt.Sprintf("guild %s is not registered", guildID)}
		}
		return fmt.Errorf("failed to designate art channel: %w", err)
	}
	return nil
}

func validMedia(contentType string) bool {
	return strings.Contains(contentType, "image") || strings.Contains(contentType, "audio")
}
