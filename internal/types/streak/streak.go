package streak

import (
	"time"

	"github.com/google/uuid"
)

// MaxFreezes is the number of grace tokens a streak holds when created and
// after every weekly refill.
const MaxFreezes = 2

type Streak struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	GuildID      string     `json:"guild_id" db:"guild_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	CreationDate time.Time  `json:"creation_date" db:"creation_date"`
	EndDate      *time.Time `json:"end_date" db:"end_date"`
	Active       bool       `json:"active" db:"active"`
	Freezes      int        `json:"freezes" db:"freezes"`
}

type Submission struct {
	ID           uuid.UUID `json:"id" db:"id"`
	StreakID     uuid.UUID `json:"art_streak_id" db:"art_streak_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	CreationDate time.Time `json:"creation_date" db:"creation_date"`
	MessageLink  string    `json:"message_link" db:"message_link"`
}

// Stats is the per-user aggregate served by the streakstats command.
type Stats struct {
	UserID           string `json:"user_id"`
	StreakCount      int    `json:"streak_count"`
	TotalSubmissions int    `json:"total_submissions"`
	LongestStreak    int    `json:"longest_streak"`
	ActiveStreak     bool   `json:"active_streak"`
	DaysSinceLast    int    `json:"days_since_last"`
}

// New returns an active streak starting today with a full set of freezes.
func New(guildID, userID string, today time.Time) *Streak {
	return &Streak{
		ID:           uuid.New(),
		GuildID:      guildID,
		UserID:       userID,
		CreationDate: today,
		Active:       true,
		Freezes:      MaxFreezes,
	}
}

// DateOf truncates t to its calendar date. Dates are stored and compared as
// midnight UTC regardless of the zone t carries, so that "same day" means the
// same calendar day in the bot's reference zone, not the same instant.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Duration is the streak length in days, inclusive of the creation day and of
// the end day (or today while the streak is running).
func (s *Streak) Duration(today time.Time) int {
	end := today
	if !s.Active && s.EndDate != nil {
		end = *s.EndDate
	}
	return int(end.Sub(s.CreationDate).Hours()/24) + 1
}

// DayOfStreak is the 1-indexed day number used in submission announcements.
func (s *Streak) DayOfStreak(today time.Time) int {
	return int(today.Sub(s.CreationDate).Hours()/24) + 1
}

// Terminate deactivates the streak and stamps its end date. Idempotent.
func (s *Streak) Terminate(today time.Time) {
	if !s.Active {
		return
	}
	s.Active = false
	d := today
	s.EndDate = &d
}

// LatestSubmittedOn reports whether the most recent submission falls on any of
// the given days. Only the single latest submission is ever inspected; older
// submissions never satisfy the check. Both the daily check and the reminder
// pass decide fulfillment through this one primitive.
func LatestSubmittedOn(latest *Submission, days ...time.Time) bool {
	if latest == nil {
		return false
	}
	for _, d := range days {
		if latest.CreationDate.Equal(d) {
			return true
		}
	}
	return false
}
