package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcourt/quizclash/go/internal/models"
)

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, name string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByName(ctx context.Context, name string) (*models.User, error)
	UpdateName(ctx context.Context, id uuid.UUID, newName string) (*models.User, error)
	SearchByName(ctx context.Context, query string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	StatsForPlayer(ctx context.Context, name string) (games int, wins int, err error)
}

// App handles users business logic
type App struct {
	repo UsersRepository
}

// NewApp creates a new users App
func NewApp(repo UsersRepository) *App {
	return &App{repo: repo}
}

const maxNameLength = 32

// CreateUser creates a new user with validation. Names are stored
// lowercase so uniqueness is case-insensitive.
func (a *App) CreateUser(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.CreateUser(ctx, name)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Str("name", user.Name).Msg("user created")
	return user, nil
}

// GetStats aggregates a user's archived games and wins.
func (a *App) GetStats(ctx context.Context, id uuid.UUID) (*UserStats, error) {
	user, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	games, wins, err := a.repo.StatsForPlayer(ctx, user.Name)
	if err != nil {
		return nil, err
	}
	return &UserStats{
		UserID:     user.ID,
		Name:       user.Name,
		TotalGames: games,
		TotalWins:  wins,
		WinRate:    winRate(games, wins),
	}, nil
}

// UpdateDisplayName renames a user profile with validation.
func (a *App) UpdateDisplayName(ctx context.Context, id uuid.UUID, req UpdateNameRequest) (*models.User, error) {
	name, err := normalizeName(req.NewName)
	if err != nil {
		return nil, err
	}

	if _, err := a.repo.GetUser(ctx, id); err != nil {
		return nil, err
	}

	user, err := a.repo.UpdateName(ctx, id, name)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", id.String()).Str("name", name).Msg("user renamed")
	return user, nil
}

// Search returns users whose name matches the query.
func (a *App) Search(ctx context.Context, query string) ([]models.User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("name query is required")
	}
	return a.repo.SearchByName(ctx, strings.ToLower(strings.TrimSpace(query)))
}

// Leaderboard ranks every registered user by win rate, descending.
func (a *App) Leaderboard(ctx context.Context) ([]UserStats, error) {
	users, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	leaderboard := make([]UserStats, 0, len(users))
	for _, u := range users {
		games, wins, err := a.repo.StatsForPlayer(ctx, u.Name)
		if err != nil {
			return nil, err
		}
		leaderboard = append(leaderboard, UserStats{
			UserID:     u.ID,
			Name:       u.Name,
			TotalGames: games,
			TotalWins:  wins,
			WinRate:    winRate(games, wins),
		})
	}

	sort.Slice(leaderboard, func(i, j int) bool {
		if leaderboard[i].WinRate != leaderboard[j].WinRate {
			return leaderboard[i].WinRate > leaderboard[j].WinRate
		}
		return leaderboard[i].TotalWins > leaderboard[j].TotalWins
	})
	return leaderboard, nil
}

func normalizeName(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", errors.New("name is required")
	}
	if len(name) > maxNameLength {
		return "", fmt.Errorf("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func winRate(games, wins int) float64 {
	if games == 0 {
		return 0
	}
	return float64(wins) / float64(games)
}
