package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"artstreakbot/internal/gateway"
	"artstreakbot/internal/store"
	"artstreakbot/internal/types/streak"
)

// NotifierService maps engine outcomes to guild announcements and hands them
// to the gateway. State transitions are committed before any method here is
// called, so a failed delivery is logged and dropped, never retried and never
// rolled back.
type NotifierService struct {
	store store.Store
	gw    gateway.Gateway
}

func NewNotifierService(st store.Store, gw gateway.Gateway) *NotifierService {
	return &NotifierService{store: st, gw: gw}
}

func (n *NotifierService) AnnounceFreezeLost(ctx context.Context, st *streak.Streak) {
	msg := fmt.Sprintf("<@%s> failed to fulfill yesterday's streak requirement and has lost a freeze.", st.UserID)
	n.announce(ctx, st.GuildID, msg, "freeze")
}

func (n *NotifierService) AnnounceTermination(ctx context.Context, st *streak.Streak, reason streak.TerminationReason, today time.Time) {
	msg := fmt.Sprintf("<@%s>'s art streak of %d days has ended.\nReason: %s",
		st.UserID, st.Duration(today), reason)
	n.announce(ctx, st.GuildID, msg, "termination")
}

func (n *NotifierService) AnnounceReminder(ctx context.Context, st *streak.Streak) {
	msg := fmt.Sprintf("<@%s> still needs to submit art today. Don't let the streak die.", st.UserID)
	n.announce(ctx, st.GuildID, msg, "reminder")
}

func (n *NotifierService) announce(ctx context.Context, guildID, msg, kind string) {
	channelID, err := n.artChannel(ctx, guildID)
	if err != nil {
		log.Error().Err(err).Str("guild_id", guildID).Str("kind", kind).
			Msg("cannot resolve art channel, announcement dropped")
		return
	}
	if _, err := n.gw.SendMessage(ctx, channelID, msg); err != nil {
		log.Error().Err(err).Str("guild_id", guildID).Str("kind", kind).
			Msg("announcement delivery failed")
	}
}

func (n *NotifierService) artChannel(ctx context.Context, guildID string) (string, error) {
	g, err := n.store.GetGuild(ctx, guildID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", &streak.NotFoundError{Msg: fmt.Sprintf("guild %s is not registered", guildID)}
		}
		return "", err
	}
	if g.ArtChannelID == nil {
		return "", &streak.ConfigError{Msg: "this guild has not designated an art channel"}
	}
	return *g.ArtChannelID, nil
}
