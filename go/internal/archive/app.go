package archive

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/models"
)

// SummaryRepository defines what the app layer needs from the database layer
type SummaryRepository interface {
	SaveSummary(ctx context.Context, s models.SessionSummary) error
	History(ctx context.Context, f HistoryFilter) ([]models.SessionSummary, error)
	GetByCode(ctx context.Context, code string) (*models.SessionSummary, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CompletedPublisher is the optional event fan-out for archived games.
type CompletedPublisher interface {
	PublishSessionCompleted(summary models.SessionSummary) error
}

// App is the persistence collaborator: it stores finalized summaries and
// announces them. It satisfies game.Archiver; its outcome never feeds back
// into live session state.
type App struct {
	repo      SummaryRepository
	publisher CompletedPublisher // may be nil
}

// NewApp creates a new archive App
func NewApp(repo SummaryRepository, publisher CompletedPublisher) *App {
	return &App{repo: repo, publisher: publisher}
}

// SaveSummary stores the summary and, when configured, publishes the
// completion event. Publish failures are logged, not propagated: the row is
// the durable record.
func (a *App) SaveSummary(ctx context.Context, summary models.SessionSummary) error {
	if err := a.repo.SaveSummary(ctx, summary); err != nil {
		return err
	}
	log.Info().
		Str("session", summary.Code).
		Int("players", len(summary.Players)).
		Msg("session summary archived")

	if a.publisher != nil {
		if err := a.publisher.PublishSessionCompleted(summary); err != nil {
			log.Error().
				Err(err).
				Str("session", summary.Code).
				Msg("failed to publish session completed event")
		}
	}
	return nil
}

// History returns archived sessions matching the filter.
func (a *App) History(ctx context.Context, f HistoryFilter) ([]models.SessionSummary, error) {
	return a.repo.History(ctx, f)
}

// GetByCode returns the latest archived session for a code.
func (a *App) GetByCode(ctx context.Context, code string) (*models.SessionSummary, error) {
	return a.repo.GetByCode(ctx, code)
}

// Leaderboard returns the players with the most wins.
func (a *App) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return a.repo.Leaderboard(ctx, limit)
}

// Cleanup removes summaries older than the retention cutoff.
func (a *App) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	return a.repo.DeleteOlderThan(ctx, cutoff)
}
