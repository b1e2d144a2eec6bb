package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"artstreakbot/internal/types/guild"
	"artstreakbot/internal/types/streak"
)

// PostgresStore persists the streak core in Postgres through a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// Migrate creates the schema when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS guilds (
		id TEXT PRIMARY KEY,
		art_channel_id TEXT
	);
	CREATE TABLE IF NOT EXISTS art_streaks (
		id UUID PRIMARY KEY,
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		creation_date DATE NOT NULL,
		end_date DATE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		freezes INT NOT NULL DEFAULT 2
	);
	CREATE UNIQUE INDEX IF NOT EXISTS one_active_streak_per_user
		ON art_streaks (guild_id, user_id) WHERE active;
	CREATE TABLE IF NOT EXISTS art_streak_submissions (
		id UUID PRIMARY KEY,
		art_streak_id UUID NOT NULL REFERENCES art_streaks(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		creation_date DATE NOT NULL,
		message_link TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS subscribers (
		id UUID PRIMARY KEY,
		guild_id TEXT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		UNIQUE (guild_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS run_marker (
		id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		last_run_date DATE NOT NULL
	);
	`
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateGuild(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO guilds (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("failed to create guild: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteGuild(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM guilds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete guild: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGuild(ctx context.Context, id string) (*guild.Guild, error) {
	g := &guild.Guild{}
	err := s.db.QueryRow(ctx, `SELECT id, art_channel_id FROM guilds WHERE id = $1`, id).
		Scan(&g.ID, &g.ArtChannelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get guild: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListGuildIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM guilds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan guild id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) SetArtChannel(ctx context.Context, guildID, channelID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE guilds SET art_channel_id = $2 WHERE id = $1`, guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to set art channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const streakColumns = `id, guild_id, user_id, creation_date, end_date, active, freezes`

func scanStreak(row pgx.Row) (*streak.Streak, error) {
	st := &streak.Streak{}
	err := row.Scan(&st.ID, &st.GuildID, &st.UserID, &st.CreationDate, &st.EndDate, &st.Active, &st.Freezes)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) ActiveStreaks(ctx context.Context) ([]*streak.Streak, error) {
	rows, err := s.db.Query(ctx, `SELECT `+streakColumns+` FROM art_streaks WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active streaks: %w", err)
	}
	defer rows.Close()

	var streaks []*streak.Streak
	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		streaks = append(streaks, st)
	}
	return streaks, rows.Err()
}

func (s *PostgresStore) ActiveStreak(ctx context.Context, guildID, userID string) (*streak.Streak, error) {
	st, err := scanStreak(s.db.QueryRow(ctx,
		`SELECT `+streakColumns+` FROM art_streaks WHERE guild_id = $1 AND user_id = $2 AND active`,
		guildID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active streak: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) StreaksForUser(ctx context.Context, guildID, userID string) ([]*streak.Streak, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+streakColumns+` FROM art_streaks WHERE guild_id = $1 AND user_id = $2 ORDER BY creation_date`,
		guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user streaks: %w", err)
	}
	defer rows.Close()

	var streaks []*streak.Streak
	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		streaks = append(streaks, st)
	}
	return streaks, rows.Err()
}

func (s *PostgresStore) UpdateStreak(ctx context.Context, st *streak.Streak) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE art_streaks SET end_date = $2, active = $3, freezes = $4 WHERE id = $1`,
		st.ID, st.EndDate, st.Active, st.Freezes)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendSubmission(ctx context.Context, st *streak.Streak, created bool, sub *streak.Submission) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if created {
		_, err = tx.Exec(ctx,
			`INSERT INTO art_streaks (id, guild_id, user_id, creation_date, active, freezes)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			st.ID, st.GuildID, st.UserID, st.CreationDate, st.Active, st.Freezes)
		if err != nil {
			return fmt.Errorf("failed to insert streak: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO art_streak_submissions (id, art_streak_id, user_id, creation_date, message_link)
		 VALUES ($1, $2, $3, $4, $5)`,
		sub.ID, sub.StreakID, sub.UserID, sub.CreationDate, sub.MessageLink)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) LatestSubmission(ctx context.Context, streakID uuid.UUID) (*streak.Submission, error) {
	sub := &streak.Submission{}
	err := s.db.QueryRow(ctx,
		`SELECT id, art_streak_id, user_id, creation_date, message_link
		 FROM art_streak_submissions WHERE art_streak_id = $1
		 ORDER BY creation_date DESC, id DESC LIMIT 1`, streakID).
		Scan(&sub.ID, &sub.StreakID, &sub.UserID, &sub.CreationDate, &sub.MessageLink)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest submission: %w", err)
	}
	return sub, nil
}

func (s *PostgresStore) CountSubmissions(ctx context.Context, guildID, userID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM art_streak_submissions sub
		 JOIN art_streaks st ON st.id = sub.art_streak_id
		 WHERE st.guild_id = $1 AND sub.user_id = $2`, guildID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) AddSubscriber(ctx context.Context, guildID, userID string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO subscribers (id, guild_id, user_id) VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, user_id) DO NOTHING`,
		uuid.New(), guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to add subscriber: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveSubscriber(ctx context.Context, guildID, userID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM subscribers WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove subscriber: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsSubscribed(ctx context.Context, guildID, userID string) (bool, error) {
	var subscribed bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscribers WHERE guild_id = $1 AND user_id = $2)`,
		guildID, userID).Scan(&subscribed)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return subscribed, nil
}

func (s *PostgresStore) Subscribers(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_id FROM subscribers WHERE guild_id = $1 ORDER BY user_id`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *PostgresStore) LastRunDate(ctx context.Context) (time.Time, error) {
	var day time.Time
	err := s.db.QueryRow(ctx, `SELECT last_run_date FROM run_marker WHERE id = 1`).Scan(&day)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get run marker: %w", err)
	}
	return day, nil
}

func (s *PostgresStore) SetLastRunDate(ctx context.Context, day time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO run_marker (id, last_run_date) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET last_run_date = EXCLUDED.last_run_date`, day)
	if err != nil {
		return fmt.Errorf("failed to set run marker: %w", err)
	}
	return nil
}
