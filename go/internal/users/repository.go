package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcourt/quizclash/go/internal/models"
)

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrNameTaken is returned when a profile name is already registered.
	ErrNameTaken = errors.New("user name already exists")
)

// uniqueViolation is the Postgres error code for unique constraint breaks.
const uniqueViolation = "23505"

// Repository implements user data access operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new users repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts a new user profile.
func (r *Repository) CreateUser(ctx context.Context, name string) (*models.User, error) {
	user := models.User{ID: uuid.New(), Name: name}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name)
		VALUES ($1, $2)
		RETURNING created_at`,
		user.ID, user.Name)
	if err := row.Scan(&user.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM users WHERE id = $1`, id))
}

// GetUserByName retrieves a user by profile name
func (r *Repository) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `
		SELECT id, name, created_at FROM users WHERE name = $1`, name))
}

// UpdateName renames a user profile.
func (r *Repository) UpdateName(ctx context.Context, id uuid.UUID, newName string) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET name = $2 WHERE id = $1
		RETURNING id, name, created_at`,
		id, newName)
	user, err := r.scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, newName)
		}
		return nil, err
	}
	return user, nil
}

// SearchByName returns users whose name contains the query,
// case-insensitively.
func (r *Repository) SearchByName(ctx context.Context, query string) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at FROM users
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var found []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		found = append(found, u)
	}
	return found, rows.Err()
}

// ListUsers returns every registered profile.
func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.SearchByName(ctx, "")
}

// StatsForPlayer counts archived appearances and wins for a profile name.
func (r *Repository) StatsForPlayer(ctx context.Context, name string) (games int, wins int, err error) {
	member := fmt.Sprintf(`[{"name": %q}]`, name)
	row := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE players @> $1::jsonb),
			COUNT(*) FILTER (WHERE winner = $2)
		FROM session_summaries`,
		member, name)
	if err := row.Scan(&games, &wins); err != nil {
		return 0, 0, fmt.Errorf("failed to count player stats: %w", err)
	}
	return games, wins, nil
}

func (r *Repository) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}
