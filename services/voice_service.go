package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"artstreakbot/internal/gateway"
	"artstreakbot/internal/store"
)

// VoiceService manages voice-activity notification subscriptions and the
// fan-out when a guild's voice channels wake up.
type VoiceService struct {
	store store.Store
	gw    gateway.Gateway
}

func NewVoiceService(st store.Store, gw gateway.Gateway) *VoiceService {
	return &VoiceService{store: st, gw: gw}
}

func (s *VoiceService) Subscribe(ctx context.Context, guildID, userID string) error {
	if err := s.store.AddSubscriber(ctx, guildID, userID); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

func (s *VoiceService) Unsubscribe(ctx context.Context, guildID, userID string) error {
	if err := s.store.RemoveSubscriber(ctx, guildID, userID); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

func (s *VoiceService) IsSubscribed(ctx context.Context, guildID, userID string) (bool, error) {
	return s.store.IsSubscribed(ctx, guildID, userID)
}

// HandleVoiceStateUpdate DMs every subscriber when a member joins voice from
// nowhere and brings the guild's total voice population from zero to one.
// The member who just joined is never messaged. DM failures are logged per
// subscriber and never stop the fan-out.
func (s *VoiceService) HandleVoiceStateUpdate(ctx context.Context, ev *gateway.VoiceStateEvent) error {
	if ev.PrevChannelID != "" || ev.NewChannelID == "" || ev.Population != 1 {
		return nil
	}
	log.Info().Str("guild_id", ev.GuildID).Msg("voice channels now active")

	subs, err := s.store.Subscribers(ctx, ev.GuildID)
	if err != nil {
		return fmt.Errorf("failed to load subscribers: %w", err)
	}

	name := ev.GuildName
	if name == "" {
		name = ev.GuildID
	}
	msg := fmt.Sprintf("The VC in %s is now active!", name)

	for _, userID := range subs {
		if userID == ev.UserID {
			continue
		}
		dm, err := s.gw.OpenDM(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("failed to open dm channel")
			continue
		}
		if _, err := s.gw.SendMessage(ctx, dm, msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("voice notification delivery failed")
		}
	}
	return nil
}
