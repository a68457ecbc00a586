package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/archive"
	"github.com/mcourt/quizclash/go/internal/game"
	"github.com/mcourt/quizclash/go/internal/gateway"
	"github.com/mcourt/quizclash/go/internal/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if getEnv("LOG_PRETTY", "false") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer pool.Close()

	tuning, err := loadGameConfig(getEnv("GAME_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game config")
	}

	var publisher archive.CompletedPublisher
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg := archive.DefaultPublisherConfig()
		cfg.URL = url
		natsPublisher, err := archive.NewPublisher(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	} else {
		log.Info().Msg("NATS_URL not set, session completion events disabled")
	}

	archiveApp := archive.NewApp(archive.NewRepository(pool), publisher)
	usersApp := users.NewApp(users.NewRepository(pool))

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	gameApp := game.NewApp(tuning, clockwork.NewRealClock(), cm, archiveApp)
	router := gateway.NewRouter(gameApp, cm)
	cm.SetRouter(router)
	go cm.Start(ctx)

	server := setupServer(
		gateway.NewWebSocketHandler(cm),
		archive.NewService(archiveApp),
		users.NewService(usersApp),
	)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting quizclash server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
