package workers

import (
	"context"
	"fmt"
	"time"

	"artstreakbot/services"

	"github.com/roylee0704/gron"
	"github.com/roylee0704/gron/xtime"
	"github.com/rs/zerolog/log"
)

// StreakScheduler drives the wall-clock work of the bot: the daily
// streak check at the start of each day and the reminder passes during
// the day. All hours are interpreted in the bot's configured timezone.
type StreakScheduler struct {
	streakService *services.StreakService
	loc           *time.Location
	checkHour     int
	reminderHours []int
	cron          *gron.Cron
}

func NewStreakScheduler(streakService *services.StreakService, loc *time.Location, checkHour int, reminderHours []int) *StreakScheduler {
	return &StreakScheduler{
		streakService: streakService,
		loc:           loc,
		checkHour:     checkHour,
		reminderHours: reminderHours,
	}
}

// Start registers the cron entries and kicks off an immediate catch-up
// check in the background, so a restart after the scheduled hour still
// evaluates the day. The run marker keeps the catch-up from double
// counting.
func (s *StreakScheduler) Start() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(1*xtime.Day).At(s.localAt(s.checkHour)), func() {
		s.runCheck()
	})

	for _, hour := range s.reminderHours {
		s.cron.AddFunc(gron.Every(1*xtime.Day).At(s.localAt(hour)), func() {
			s.runReminder()
		})
	}

	s.cron.Start()
	log.Info().Int("check_hour", s.checkHour).Ints("reminder_hours", s.reminderHours).Msg("streak scheduler started")

	go s.runCheck()
}

func (s *StreakScheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *StreakScheduler) runCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Info().Msg("running scheduled streak check")
	if err := s.streakService.CheckStreaks(ctx, false); err != nil {
		log.Error().Err(err).Msg("scheduled streak check failed")
	}
}

func (s *StreakScheduler) runReminder() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Info().Msg("running scheduled reminder pass")
	if err := s.streakService.PushReminder(ctx); err != nil {
		log.Error().Err(err).Msg("scheduled reminder pass failed")
	}
}

// localAt translates an hour in the bot's timezone into the host-local
// "hh:mm" string the cron library expects. The offset is computed once
// at startup, which is fine for a fixed-offset zone.
func (s *StreakScheduler) localAt(hour int) string {
	now := time.Now()
	botTime := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, s.loc)
	local := botTime.Local()
	return fmt.Sprintf("%02d:%02d", local.Hour(), local.Minute())
}
