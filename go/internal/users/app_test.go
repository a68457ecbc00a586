package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcourt/quizclash/go/internal/models"
)

type fakeUsersRepo struct {
	users map[uuid.UUID]*models.User
	stats map[string][2]int // name -> {games, wins}
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{
		users: make(map[uuid.UUID]*models.User),
		stats: make(map[string][2]int),
	}
}

func (f *fakeUsersRepo) add(name string, games, wins int) *models.User {
	u := &models.User{ID: uuid.New(), Name: name, CreatedAt: time.Now()}
	f.users[u.ID] = u
	f.stats[name] = [2]int{games, wins}
	return u
}

func (f *fakeUsersRepo) CreateUser(ctx context.Context, name string) (*models.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return nil, ErrNameTaken
		}
	}
	return f.add(name, 0, 0), nil
}

func (f *fakeUsersRepo) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeUsersRepo) UpdateName(ctx context.Context, id uuid.UUID, newName string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Name = newName
	return u, nil
}

func (f *fakeUsersRepo) SearchByName(ctx context.Context, query string) ([]models.User, error) {
	var found []models.User
	for _, u := range f.users {
		if strings.Contains(u.Name, query) {
			found = append(found, *u)
		}
	}
	return found, nil
}

func (f *fakeUsersRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	return f.SearchByName(ctx, "")
}

func (f *fakeUsersRepo) StatsForPlayer(ctx context.Context, name string) (int, int, error) {
	s := f.stats[name]
	return s[0], s[1], nil
}

func TestCreateUserNormalizesName(t *testing.T) {
	repo := newFakeUsersRepo()
	app := NewApp(repo)

	user, err := app.CreateUser(context.Background(), CreateUserRequest{Name: "  Alice  "})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Name != "alice" {
		t.Fatalf("name must be lowercased and trimmed, got %q", user.Name)
	}
}

func TestCreateUserValidation(t *testing.T) {
	app := NewApp(newFakeUsersRepo())

	if _, err := app.CreateUser(context.Background(), CreateUserRequest{Name: "   "}); err == nil {
		t.Fatal("blank name must be rejected")
	}
	long := strings.Repeat("x", 33)
	if _, err := app.CreateUser(context.Background(), CreateUserRequest{Name: long}); err == nil {
		t.Fatal("over-long name must be rejected")
	}
}

func TestCreateUserDuplicateName(t *testing.T) {
	repo := newFakeUsersRepo()
	repo.add("alice", 0, 0)
	app := NewApp(repo)

	_, err := app.CreateUser(context.Background(), CreateUserRequest{Name: "ALICE"})
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestGetStats(t *testing.T) {
	repo := newFakeUsersRepo()
	u := repo.add("alice", 8, 2)
	app := NewApp(repo)

	stats, err := app.GetStats(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalGames != 8 || stats.TotalWins != 2 {
		t.Fatalf("stats: %+v", stats)
	}
	if stats.WinRate != 0.25 {
		t.Fatalf("win rate: want 0.25, got %v", stats.WinRate)
	}

	if _, err := app.GetStats(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: expected ErrUserNotFound, got %v", err)
	}
}

func TestGetStatsZeroGames(t *testing.T) {
	repo := newFakeUsersRepo()
	u := repo.add("fresh", 0, 0)
	app := NewApp(repo)

	stats, err := app.GetStats(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.WinRate != 0 {
		t.Fatalf("zero games must not divide, got %v", stats.WinRate)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	repo := newFakeUsersRepo()
	u := repo.add("alice", 0, 0)
	app := NewApp(repo)

	updated, err := app.UpdateDisplayName(context.Background(), u.ID, UpdateNameRequest{NewName: " Alicia "})
	if err != nil {
		t.Fatalf("UpdateDisplayName: %v", err)
	}
	if updated.Name != "alicia" {
		t.Fatalf("renamed to %q", updated.Name)
	}

	if _, err := app.UpdateDisplayName(context.Background(), uuid.New(), UpdateNameRequest{NewName: "x"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: expected ErrUserNotFound, got %v", err)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	app := NewApp(newFakeUsersRepo())
	if _, err := app.Search(context.Background(), "  "); err == nil {
		t.Fatal("blank query must be rejected")
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	repo := newFakeUsersRepo()
	repo.add("often", 10, 5)   // 0.5
	repo.add("rare", 2, 1)     // 0.5, fewer wins
	repo.add("champ", 4, 3)    // 0.75
	repo.add("newbie", 0, 0)   // 0
	app := NewApp(repo)

	board, err := app.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(board) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(board))
	}

	want := []string{"champ", "often", "rare", "newbie"}
	for i, name := range want {
		if board[i].Name != name {
			t.Fatalf("position %d: want %s, got %s", i, name, board[i].Name)
		}
	}
}
