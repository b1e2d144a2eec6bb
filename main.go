package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"artstreakbot/handlers"
	"artstreakbot/internal/gateway"
	"artstreakbot/internal/store"
	"artstreakbot/internal/workers"
	"artstreakbot/middleware"
	"artstreakbot/services"

	_ "net/http/pprof"
)

var (
	dbPool        *pgxpool.Pool
	dataStore     store.Store
	chatGateway   gateway.Gateway
	streakService *services.StreakService
	voiceService  *services.VoiceService
	guildService  *services.GuildService
	scheduler     *workers.StreakScheduler
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable is not set")
	}

	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		log.Fatal().Msg("RELAY_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse database URL")
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create connection pool")
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	pgStore := store.NewPostgresStore(dbPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	dataStore = pgStore

	log.Info().Msg("Successfully connected to database")

	chatGateway = gateway.NewRelayGateway(relayURL, os.Getenv("RELAY_SECRET"))

	loc := streakZone()
	notifier := services.NewNotifierService(dataStore, chatGateway)
	streakService = services.NewStreakService(dataStore, notifier, chatGateway, loc, resetWeekday())
	voiceService = services.NewVoiceService(dataStore, chatGateway)
	guildService = services.NewGuildService(dataStore, chatGateway)
	scheduler = workers.NewStreakScheduler(streakService, loc, envInt("STREAK_CHECK_HOUR", 0), reminderHours())

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Info().Msg("Closing database connection pool...")
		dbPool.Close()
	}()

	syncCtx, syncCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := guildService.SyncGuilds(syncCtx); err != nil {
		log.Warn().Err(err).Msg("Guild sync failed, continuing with stored guilds")
	}
	syncCancel()

	scheduler.Start()
	defer scheduler.Stop()

	gatewayHandler := handlers.NewGatewayHandler(streakService, voiceService, guildService)
	adminHandler := handlers.NewAdminHandler(streakService)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "art-streak-bot"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/gateway/command", gatewayHandler.HandleCommand).Methods("POST")
	standardRouter.HandleFunc("/gateway/voice-state", gatewayHandler.HandleVoiceState).Methods("POST")
	standardRouter.HandleFunc("/gateway/guild", gatewayHandler.HandleGuildEvent).Methods("POST")

	admin := standardRouter.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.OperatorAuthMiddleware)
	admin.HandleFunc("/check-streaks", adminHandler.CheckStreaks).Methods("POST")
	admin.HandleFunc("/push-reminder", adminHandler.PushReminder).Methods("POST")
	admin.HandleFunc("/terminate-streak", adminHandler.TerminateStreak).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Gateway-Signature", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Error starting server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Got signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server shutdown complete")
}

// streakZone returns the fixed-offset zone all streak dates are kept in.
// The reference deployment tracks a community in UTC-6.
func streakZone() *time.Location {
	offset := envInt("STREAK_TZ_OFFSET", -6)
	return time.FixedZone("streak", offset*3600)
}

func resetWeekday() time.Weekday {
	raw := os.Getenv("STREAK_RESET_WEEKDAY")
	if raw == "" {
		return time.Sunday
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(raw, d.String()) {
			return d
		}
	}
	log.Warn().Str("value", raw).Msg("Unrecognized STREAK_RESET_WEEKDAY, defaulting to Sunday")
	return time.Sunday
}

func reminderHours() []int {
	raw := os.Getenv("STREAK_REMINDER_HOURS")
	if raw == "" {
		return []int{9, 12, 15, 18}
	}
	var hours []int
	for _, part := range strings.Split(raw, ",") {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || h < 0 || h > 23 {
			log.Warn().Str("value", part).Msg("Skipping invalid reminder hour")
			continue
		}
		hours = append(hours, h)
	}
	return hours
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Msg("Invalid integer environment variable, using default")
		return fallback
	}
	return v
}
