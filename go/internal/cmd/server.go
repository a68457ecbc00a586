package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/archive"
	"github.com/mcourt/quizclash/go/internal/gateway"
	"github.com/mcourt/quizclash/go/internal/users"
)

func setupServer(
	wsHandler *gateway.WebSocketHandler,
	archiveService *archive.Service,
	usersService *users.Service,
) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	wsHandler.RegisterRoutes(mux)
	archiveService.RegisterRoutes(mux)
	usersService.RegisterRoutes(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{getEnv("CORS_ORIGIN", "*")},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	port := getEnvAsInt("PORT", 8080)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           corsHandler.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", port).Msg("HTTP server configured")
	return server
}
