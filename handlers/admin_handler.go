package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"artstreakbot/internal/types/streak"
	"artstreakbot/services"

	"github.com/rs/zerolog/log"
)

// AdminHandler exposes the operator debug surface: triggering the daily
// check and reminder pass out of schedule, and force-ending a streak.
type AdminHandler struct {
	streakService *services.StreakService
}

func NewAdminHandler(streakService *services.StreakService) *AdminHandler {
	return &AdminHandler{
		streakService: streakService,
	}
}

func (h *AdminHandler) CheckStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	force := r.URL.Query().Get("force") == "true"

	log.Info().Bool("force", force).Msg("manual streak check requested")

	if err := h.streakService.CheckStreaks(ctx, force); err != nil {
		log.Error().Err(err).Msg("manual streak check failed")
		respondWithError(w, http.StatusInternalServerError, "Streak check failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) PushReminder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	log.Info().Msg("manual reminder push requested")

	if err := h.streakService.PushReminder(ctx); err != nil {
		log.Error().Err(err).Msg("manual reminder push failed")
		respondWithError(w, http.StatusInternalServerError, "Reminder push failed")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) TerminateStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req struct {
		GuildID string `json:"guild_id"`
		UserID  string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GuildID == "" || req.UserID == "" {
		respondWithError(w, http.StatusBadRequest, "guild_id and user_id are required")
		return
	}

	if err := h.streakService.TerminateUserStreak(ctx, req.GuildID, req.UserID); err != nil {
		var nfErr *streak.NotFoundError
		if errors.As(err, &nfErr) {
			respondWithError(w, http.StatusNotFound, "No active streak for that user")
			return
		}
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to terminate streak")
		respondWithError(w, http.StatusInternalServerError, "Failed to terminate streak")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
