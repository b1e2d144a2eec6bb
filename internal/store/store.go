package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"artstreakbot/internal/types/guild"
	"artstreakbot/internal/types/streak"
)

// ErrNotFound is returned for point lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary for the streak core. Every method is one
// transactional unit: it commits before returning and holds no locks across
// calls, so a failed gateway delivery after a call can never roll its write
// back.
type Store interface {
	// Guilds.
	CreateGuild(ctx context.Context, id string) error
	DeleteGuild(ctx context.Context, id string) error
	GetGuild(ctx context.Context, id string) (*guild.Guild, error)
	ListGuildIDs(ctx context.Context) ([]string, error)
	SetArtChannel(ctx context.Context, guildID, channelID string) error

	// Streaks. ActiveStreaks returns every active streak across all guilds in
	// stable (query) order; ActiveStreak the single active streak for one
	// (guild, user) pair, of which there is at most one.
	ActiveStreaks(ctx context.Context) ([]*streak.Streak, error)
	ActiveStreak(ctx context.Context, guildID, userID string) (*streak.Streak, error)
	StreaksForUser(ctx context.Context, guildID, userID string) ([]*streak.Streak, error)
	UpdateStreak(ctx context.Context, s *streak.Streak) error

	// Submissions. AppendSubmission persists sub and, when created is true,
	// its new parent streak in the same transaction. LatestSubmission returns
	// ErrNotFound for a streak with no submissions.
	AppendSubmission(ctx context.Context, s *streak.Streak, created bool, sub *streak.Submission) error
	LatestSubmission(ctx context.Context, streakID uuid.UUID) (*streak.Submission, error)
	CountSubmissions(ctx context.Context, guildID, userID string) (int, error)

	// Voice-notification subscribers.
	AddSubscriber(ctx context.Context, guildID, userID string) error
	RemoveSubscriber(ctx context.Context, guildID, userID string) error
	IsSubscribed(ctx context.Context, guildID, userID string) (bool, error)
	Subscribers(ctx context.Context, guildID string) ([]string, error)

	// Run marker for the daily check. At most one row exists; LastRunDate
	// returns ErrNotFound before the first run.
	LastRunDate(ctx context.Context) (time.Time, error)
	SetLastRunDate(ctx context.Context, day time.Time) error
}
