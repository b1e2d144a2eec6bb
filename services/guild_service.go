package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"artstreakbot/internal/gateway"
	"artstreakbot/internal/store"
)

// GuildService keeps the guild table in step with the bot's actual
// memberships: registration on join, removal on leave, and a reconciliation
// sweep at startup for changes missed while the process was down.
type GuildService struct {
	store store.Store
	gw    gateway.Gateway
}

func NewGuildService(st store.Store, gw gateway.Gateway) *GuildService {
	return &GuildService{store: st, gw: gw}
}

func (s *GuildService) RegisterGuild(ctx context.Context, id string) error {
	if err := s.store.CreateGuild(ctx, id); err != nil {
		return fmt.Errorf("failed to register guild: %w", err)
	}
	log.Info().Str("guild_id", id).Msg("guild registered")
	return nil
}

// UnregisterGuild removes a guild and everything that hangs off it: streaks,
// submissions and subscribers.
func (s *GuildService) UnregisterGuild(ctx context.Context, id string) error {
	if err := s.store.DeleteGuild(ctx, id); err != nil {
		return fmt.Errorf("failed to unregister guild: %w", err)
	}
	log.Info().Str("guild_id", id).Msg("guild unregistered")
	return nil
}

// SyncGuilds reconciles the stored guild list against the gateway's current
// membership list.
func (s *GuildService) SyncGuilds(ctx context.Context) error {
	current, err := s.gw.GuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list gateway guilds: %w", err)
	}
	stored, err := s.store.ListGuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored guilds: %w", err)
	}

	member := make(map[string]bool, len(current))
	for _, id := range current {
		member[id] = true
	}
	known := make(map[string]bool, len(stored))
	for _, id := range stored {
		known[id] = true
	}

	for _, id := range stored {
		if !member[id] {
			if err := s.UnregisterGuild(ctx, id); err != nil {
				log.Error().Err(err).Str("guild_id", id).Msg("guild sync removal failed")
			}
		}
	}
	for _, id := range current {
		if !known[id] {
			if err := s.RegisterGuild(ctx, id); err != nil {
				log.Error().Err(err).Str("guild_id", id).Msg("guild sync registration failed")
			}
		}
	}
	return nil
}
