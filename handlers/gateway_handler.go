package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"artstreakbot/internal/gateway"
	"artstreakbot/internal/types/streak"
	"artstreakbot/services"

	"github.com/rs/zerolog/log"
)

// GatewayHandler receives events relayed from the chat gateway: slash
// commands, voice state updates and guild membership changes.
type GatewayHandler struct {
	streakService *services.StreakService
	voiceService  *services.VoiceService
	guildService  *services.GuildService
}

func NewGatewayHandler(streakService *services.StreakService, voiceService *services.VoiceService, guildService *services.GuildService) *GatewayHandler {
	return &GatewayHandler{
		streakService: streakService,
		voiceService:  voiceService,
		guildService:  guildService,
	}
}

func (h *GatewayHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := h.verifiedBody(w, r)
	if !ok {
		return
	}

	var ev gateway.CommandEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error().Err(err).Msg("failed to parse command event")
		respondWithError(w, http.StatusBadRequest, "Error parsing event")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	log.Info().Str("command", ev.Command).Str("guild_id", ev.GuildID).Str("user_id", ev.UserID).Msg("received command event")

	switch ev.Command {
	case "submitart":
		h.handleSubmitArt(ctx, w, &ev)
	case "streakstats":
		h.handleStreakStats(ctx, w, &ev)
	case "designateartchannel":
		h.handleDesignateArtChannel(ctx, w, &ev)
	case "cancelstreak":
		h.handleCancelStreak(ctx, w, &ev)
	case "subscribe":
		h.handleSubscribe(ctx, w, &ev)
	case "unsubscribe":
		h.handleUnsubscribe(ctx, w, &ev)
	case "amisubscribed":
		h.handleAmISubscribed(ctx, w, &ev)
	default:
		respondWithReply(w, fmt.Sprintf("%q is not a command I recognize.", ev.Command))
	}
}

func (h *GatewayHandler) HandleVoiceState(w http.ResponseWriter, r *http.Request) {
	body, ok := h.verifiedBody(w, r)
	if !ok {
		return
	}

	var ev gateway.VoiceStateEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error().Err(err).Msg("failed to parse voice state event")
		respondWithError(w, http.StatusBadRequest, "Error parsing event")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.voiceService.HandleVoiceStateUpdate(ctx, &ev); err != nil {
		log.Error().Err(err).Str("guild_id", ev.GuildID).Msg("failed to handle voice state update")
		respondWithError(w, http.StatusInternalServerError, "Error processing event")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *GatewayHandler) HandleGuildEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := h.verifiedBody(w, r)
	if !ok {
		return
	}

	var ev gateway.GuildEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error().Err(err).Msg("failed to parse guild event")
		respondWithError(w, http.StatusBadRequest, "Error parsing event")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var err error
	if ev.Removed {
		err = h.guildService.UnregisterGuild(ctx, ev.GuildID)
	} else {
		err = h.guildService.RegisterGuild(ctx, ev.GuildID)
	}
	if err != nil {
		log.Error().Err(err).Str("guild_id", ev.GuildID).Bool("removed", ev.Removed).Msg("failed to handle guild event")
		respondWithError(w, http.StatusInternalServerError, "Error processing event")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *GatewayHandler) handleSubmitArt(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	err := h.streakService.RecordSubmission(ctx, ev)
	if err == nil {
		respondWithReply(w, "")
		return
	}

	var cfgErr *streak.ConfigError
	switch {
	case errors.Is(err, streak.ErrUnsupportedMedia):
		respondWithReply(w, "That file doesn't look like art. Please attach an image or audio file.")
	case errors.As(err, &cfgErr):
		respondWithReply(w, "No art channel has been designated for this server yet. Ask an admin to run /designateartchannel first.")
	default:
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("failed to record submission")
		respondWithReply(w, "An error has occurred. Please try again later.")
	}
}

func (h *GatewayHandler) handleStreakStats(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	target := ev.TargetUserID
	if target == "" {
		target = ev.UserID
	}

	stats, err := h.streakService.StreakStats(ctx, ev.GuildID, target)
	if err != nil {
		var nfErr *streak.NotFoundError
		if errors.As(err, &nfErr) {
			respondWithReply(w, fmt.Sprintf("<@%s> has never started an art streak.", target))
			return
		}
		log.Error().Err(err).Str("user_id", target).Msg("failed to compute streak stats")
		respondWithReply(w, "An error has occurred. Please try again later.")
		return
	}

	reply := fmt.Sprintf(
		"Art streak stats for <@%s>:\n- Streaks started: %d\n- Total submissions: %d\n- Longest streak: %d days",
		stats.UserID, stats.StreakCount, stats.TotalSubmissions, stats.LongestStreak,
	)
	if stats.ActiveStreak {
		reply += "\n- Currently on an active streak"
	} else {
		reply += fmt.Sprintf("\n- Days since last streak: %d", stats.DaysSinceLast)
	}
	respondWithReply(w, reply)
}

func (h *GatewayHandler) handleDesignateArtChannel(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	if !ev.IsAdmin {
		respondWithReply(w, "Only server admins can designate the art channel.")
		return
	}

	if err := h.streakService.DesignateArtChannel(ctx, ev.GuildID, ev.ChannelID); err != nil {
		log.Error().Err(err).Str("guild_id", ev.GuildID).Msg("failed to designate art channel")
		respondWithReply(w, "An error has occurred. Please try again later.")
		return
	}

	respondWithReply(w, "This channel is now the art streak channel.")
}

func (h *GatewayHandler) handleCancelStreak(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	err := h.streakService.TerminateUserStreak(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		var nfErr *streak.NotFoundError
		if errors.As(err, &nfErr) {
			respondWithReply(w, "You don't have an active art streak to cancel.")
			return
		}
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("failed to cancel streak")
		respondWithReply(w, "An error has occurred. Please try again later.")
		return
	}

	respondWithReply(w, "")
}

func (h *GatewayHandler) handleSubscribe(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	subscribed, err := h.voiceService.IsSubscribed(ctx, ev.GuildID, ev.UserID)
	if err == nil && subscribed {
		respondWithReply(w, "You are already subscribed to voice channel notifications.")
		return
	}
	if err == nil {
		err = h.voiceService.Subscribe(ctx, ev.GuildID, ev.UserID)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("failed to subscribe")
		respondWithReply(w, "An error has occurred. Please try again later.")
		return
	}

	respondWithReply(w, "You will now get a DM when a voice channel in this server becomes active.")
}

func (h *GatewayHandler) handleUnsubscribe(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	subscribed, err := h.voiceService.IsSubscribed(ctx, ev.GuildID, ev.UserID)
	if err == nil && !subscribed {
		respondWithReply(w, "You are not subscribed to voice channel notifications.")
		return
	}
	if err == nil {
		err = h.voiceService.Unsubscribe(ctx, ev.GuildID, ev.UserID)
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("failed to unsubscribe")
		respondWithReply(w, "An error has occurred. Please try again later.")
		return
	}

	respondWithReply(w, "You will no longer get voice channel notifications from this server.")
}

func (h *GatewayHandler) handleAmISubscribed(ctx context.Context, w http.ResponseWriter, ev *gateway.CommandEvent) {
	subscribed, err := h.voiceService.IsSubscribed(ctx, ev.GuildID, ev.UserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("failed to check subscription")
		respondWithReply(w, "An error has occurred. Please try again later.")
		return
	}

	if subscribed {
		respondWithReply(w, "You are subscribed to voice channel notifications.")
	} else {
		respondWithReply(w, "You are not subscribed to voice channel notifications.")
	}
}

// verifiedBody reads the request body and checks its HMAC signature
// against GATEWAY_WEBHOOK_SECRET. It writes the error response itself
// when verification fails.
func (h *GatewayHandler) verifiedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		log.Error().Err(err).Msg("failed to read gateway event body")
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return nil, false
	}

	secret := os.Getenv("GATEWAY_WEBHOOK_SECRET")
	if secret == "" {
		log.Warn().Msg("GATEWAY_WEBHOOK_SECRET not set, skipping signature verification")
		return body, true
	}

	sig, err := hex.DecodeString(r.Header.Get("X-Gateway-Signature"))
	if err != nil || len(sig) == 0 {
		log.Warn().Msg("missing or malformed gateway event signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return nil, false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		log.Warn().Msg("gateway event signature mismatch")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return nil, false
	}

	return body, true
}
