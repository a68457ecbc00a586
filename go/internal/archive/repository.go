package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcourt/quizclash/go/internal/models"
)

// ErrSummaryNotFound is returned when no archived session matches a lookup.
var ErrSummaryNotFound = errors.New("session summary not found")

// Repository stores finalized session summaries in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new archive repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// HistoryFilter narrows History queries. Zero values mean no filter.
type HistoryFilter struct {
	Code       string
	Winner     string
	PlayerName string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// LeaderboardEntry is one row of the wins leaderboard.
type LeaderboardEntry struct {
	Winner    string `json:"winner"`
	TotalWins int    `json:"total_wins"`
}

// SaveSummary inserts a finalized session summary.
func (r *Repository) SaveSummary(ctx context.Context, s models.SessionSummary) error {
	players, err := json.Marshal(s.Players)
	if err != nil {
		return fmt.Errorf("failed to marshal players: %w", err)
	}
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO session_summaries (code, players, winner, questions, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.Code, players, s.Winner, questions, s.StartedAt, s.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to save session summary: %w", err)
	}
	return nil
}

// History returns archived sessions matching the filter, newest first.
func (r *Repository) History(ctx context.Context, f HistoryFilter) ([]models.SessionSummary, error) {
	query := `
		SELECT code, players, winner, questions, started_at, ended_at
		FROM session_summaries
		WHERE 1=1`
	var args []any

	if f.Code != "" {
		args = append(args, f.Code)
		query += fmt.Sprintf(" AND code = $%d", len(args))
	}
	if f.Winner != "" {
		args = append(args, f.Winner)
		query += fmt.Sprintf(" AND winner = $%d", len(args))
	}
	if f.PlayerName != "" {
		member, err := json.Marshal([]map[string]string{{"name": f.PlayerName}})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal player filter: %w", err)
		}
		args = append(args, member)
		query += fmt.Sprintf(" AND players @> $%d::jsonb", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND ended_at >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND ended_at <= $%d", len(args))
	}

	query += " ORDER BY ended_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var summaries []models.SessionSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetByCode returns the most recently archived session for a code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.SessionSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT code, players, winner, questions, started_at, ended_at
		FROM session_summaries
		WHERE code = $1
		ORDER BY ended_at DESC
		LIMIT 1`, code)

	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSummaryNotFound, code)
		}
		return nil, err
	}
	return &s, nil
}

// Leaderboard returns the players with the most session wins.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT winner, COUNT(*) AS total_wins
		FROM session_summaries
		WHERE winner IS NOT NULL
		GROUP BY winner
		ORDER BY total_wins DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Winner, &e.TotalWins); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes summaries that ended before the cutoff and
// reports how many were deleted.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM session_summaries WHERE ended_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old summaries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSummary(row pgx.Row) (models.SessionSummary, error) {
	var (
		s         models.SessionSummary
		players   []byte
		questions []byte
	)
	if err := row.Scan(&s.Code, &players, &s.Winner, &questions, &s.StartedAt, &s.EndedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("failed to scan session summary: %w", err)
	}
	if err := json.Unmarshal(players, &s.Players); err != nil {
		return s, fmt.Errorf("failed to unmarshal players: %w", err)
	}
	if err := json.Unmarshal(questions, &s.Questions); err != nil {
		return s, fmt.Errorf("failed to unmarshal questions: %w", err)
	}
	return s, nil
}
