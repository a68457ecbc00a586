package archive

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Service exposes the archived-session query API. It only reads persisted
// summaries and never touches live session state.
type Service struct {
	app *App
}

// NewService creates a new archive HTTP service
func NewService(app *App) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the sessions API with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", s.handleHistory)
	mux.HandleFunc("GET /api/sessions/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/sessions/search", s.handleSearch)
	mux.HandleFunc("DELETE /api/sessions/cleanup", s.handleCleanup)
	mux.HandleFunc("GET /api/sessions/{code}", s.handleGetByCode)
	log.Info().Msg("sessions API routes registered")
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := s.app.History(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("failed to query session history")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.PlayerName = r.URL.Query().Get("player")

	sessions, err := s.app.History(r.Context(), f)
	if err != nil {
		log.Error().Err(err).Msg("failed to search sessions")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Service) handleGetByCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	summary, err := s.app.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrSummaryNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("code", code).Msg("failed to get session")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": summary})
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := s.app.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to query leaderboard")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *Service) handleCleanup(w http.ResponseWriter, r *http.Request) {
	// Retention matches the original deployment: five days.
	retention := 5 * 24 * time.Hour
	deleted, err := s.app.Cleanup(r.Context(), retention)
	if err != nil {
		log.Error().Err(err).Msg("failed to clean up old sessions")
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func filterFromQuery(r *http.Request) (HistoryFilter, error) {
	q := r.URL.Query()
	f := HistoryFilter{
		Code:   q.Get("code"),
		Winner: q.Get("winner"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid 'from' timestamp, want RFC3339")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid 'to' timestamp, want RFC3339")
		}
		f.To = &t
	}
	return f, nil
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
