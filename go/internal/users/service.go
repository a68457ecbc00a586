package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service exposes the user-profile API.
type Service struct {
	app *App
}

// NewService creates a new users HTTP service
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the users API with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", s.handleCreate)
	mux.HandleFunc("GET /api/users/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/users/search", s.handleSearch)
	mux.HandleFunc("GET /api/users/{id}/stats", s.handleStats)
	mux.HandleFunc("PUT /api/users/{id}/name", s.handleRename)
	log.Info().Msg("users API routes registered")
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.app.CreateUser(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	stats, err := s.app.GetStats(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Error().Err(err).Str("user_id", id.String()).Msg("failed to get user stats")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Service) handleRename(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req UpdateNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.app.UpdateDisplayName(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, ErrNameTaken):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	leaderboard, err := s.app.Leaderboard(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to build user leaderboard")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": leaderboard})
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
