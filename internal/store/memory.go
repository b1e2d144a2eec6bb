package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"artstreakbot/internal/types/guild"
	"artstreakbot/internal/types/streak"
)

// MemoryStore is a mutex-guarded in-memory Store used by tests. Streaks keep
// insertion order so pass iteration order is stable, matching the Postgres
// query order guarantee.
type MemoryStore struct {
	mu          sync.Mutex
	guilds      map[string]*guild.Guild
	streaks     []*streak.Streak
	submissions map[uuid.UUID][]*streak.Submission
	subscribers map[string]map[string]bool
	lastRun     *time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guilds:      make(map[string]*guild.Guild),
		submissions: make(map[uuid.UUID][]*streak.Submission),
		subscribers: make(map[string]map[string]bool),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateGuild(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guilds[id]; !ok {
		s.guilds[id] = &guild.Guild{ID: id}
	}
	return nil
}

func (s *MemoryStore) DeleteGuild(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guilds, id)
	delete(s.subscribers, id)
	var kept []*streak.Streak
	for _, st := range s.streaks {
		if st.GuildID == id {
			delete(s.submissions, st.ID)
			continue
		}
		kept = append(kept, st)
	}
	s.streaks = kept
	return nil
}

func (s *MemoryStore) GetGuild(ctx context.Context, id string) (*guild.Guild, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) ListGuildIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) SetArtChannel(ctx context.Context, guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	if !ok {
		return ErrNotFound
	}
	g.ArtChannelID = &channelID
	return nil
}

func (s *MemoryStore) ActiveStreaks(ctx context.Context) ([]*streak.Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*streak.Streak
	for _, st := range s.streaks {
		if st.Active {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) ActiveStreak(ctx context.Context, guildID, userID string) (*streak.Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.streaks {
		if st.Active && st.GuildID == guildID && st.UserID == userID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) StreaksForUser(ctx context.Context, guildID, userID string) ([]*streak.Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*streak.Streak
	for _, st := range s.streaks {
		if st.GuildID == guildID && st.UserID == userID {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStreak(ctx context.Context, st *streak.Streak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.streaks {
		if cur.ID == st.ID {
			cp := *st
			s.streaks[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) AppendSubmission(ctx context.Context, st *streak.Streak, created bool, sub *streak.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if created {
		if _, ok := s.guilds[st.GuildID]; !ok {
			return fmt.Errorf("guild %s does not exist", st.GuildID)
		}
		cp := *st
		s.streaks = append(s.streaks, &cp)
	}
	cp := *sub
	s.submissions[sub.StreakID] = append(s.submissions[sub.StreakID], &cp)
	return nil
}

func (s *MemoryStore) LatestSubmission(ctx context.Context, streakID uuid.UUID) (*streak.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.submissions[streakID]
	if len(subs) == 0 {
		return nil, ErrNotFound
	}
	latest := subs[0]
	for _, sub := range subs[1:] {
		if !sub.CreationDate.Before(latest.CreationDate) {
			latest = sub
		}
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) CountSubmissions(ctx context.Context, guildID, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, st := range s.streaks {
		if st.GuildID != guildID {
			continue
		}
		for _, sub := range s.submissions[st.ID] {
			if sub.UserID == userID {
				count++
			}
		}
	}
	return count, nil
}

func (s *MemoryStore) AddSubscriber(ctx context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[guildID] == nil {
		s.subscribers[guildID] = make(map[string]bool)
	}
	s.subscribers[guildID][userID] = true
	return nil
}

func (s *MemoryStore) RemoveSubscriber(ctx context.Context, guildID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers[guildID], userID)
	return nil
}

func (s *MemoryStore) IsSubscribed(ctx context.Context, guildID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers[guildID][userID], nil
}

func (s *MemoryStore) Subscribers(ctx context.Context, guildID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for id := range s.subscribers[guildID] {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (s *MemoryStore) LastRunDate(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return time.Time{}, ErrNotFound
	}
	return *s.lastRun, nil
}

func (s *MemoryStore) SetLastRunDate(ctx context.Context, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := day
	s.lastRun = &d
	return nil
}
