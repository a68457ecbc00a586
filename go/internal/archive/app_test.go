package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcourt/quizclash/go/internal/models"
)

type fakeSummaryRepo struct {
	saved      []models.SessionSummary
	saveErr    error
	history    []models.SessionSummary
	historyF   HistoryFilter
	getSummary *models.SessionSummary
	getErr     error
	cutoff     time.Time
	deleted    int64
}

func (f *fakeSummaryRepo) SaveSummary(ctx context.Context, s models.SessionSummary) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSummaryRepo) History(ctx context.Context, filter HistoryFilter) ([]models.SessionSummary, error) {
	f.historyF = filter
	return f.history, nil
}

func (f *fakeSummaryRepo) GetByCode(ctx context.Context, code string) (*models.SessionSummary, error) {
	return f.getSummary, f.getErr
}

func (f *fakeSummaryRepo) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	return nil, nil
}

func (f *fakeSummaryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, nil
}

type fakePublisher struct {
	published []models.SessionSummary
	err       error
}

func (f *fakePublisher) PublishSessionCompleted(summary models.SessionSummary) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, summary)
	return nil
}

func sampleSummary() models.SessionSummary {
	winner := "alice"
	return models.SessionSummary{
		Code:   "ABC123",
		Winner: &winner,
		Players: []models.PlayerResult{
			{StableID: "alice", Name: "alice", Score: 20},
			{StableID: "bob", Name: "bob", Score: 10},
		},
		Questions: []models.Question{{Text: "2+2?", Answer: "4", DurationSec: 30}},
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestSaveSummaryStoresAndPublishes(t *testing.T) {
	repo := &fakeSummaryRepo{}
	publisher := &fakePublisher{}
	app := NewApp(repo, publisher)

	if err := app.SaveSummary(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected 1 stored summary, got %d", len(repo.saved))
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.published))
	}
}

func TestSaveSummaryPublishFailureIsNotFatal(t *testing.T) {
	repo := &fakeSummaryRepo{}
	publisher := &fakePublisher{err: errors.New("broker down")}
	app := NewApp(repo, publisher)

	if err := app.SaveSummary(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("publish failure must not fail the save: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatal("summary must still be stored when publishing fails")
	}
}

func TestSaveSummaryStoreFailurePropagates(t *testing.T) {
	repo := &fakeSummaryRepo{saveErr: errors.New("db down")}
	publisher := &fakePublisher{}
	app := NewApp(repo, publisher)

	if err := app.SaveSummary(context.Background(), sampleSummary()); err == nil {
		t.Fatal("expected store error to propagate")
	}
	if len(publisher.published) != 0 {
		t.Fatal("must not publish a summary that was not stored")
	}
}

func TestSaveSummaryWithoutPublisher(t *testing.T) {
	repo := &fakeSummaryRepo{}
	app := NewApp(repo, nil)

	if err := app.SaveSummary(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("SaveSummary without publisher: %v", err)
	}
}

func TestCleanupComputesCutoff(t *testing.T) {
	repo := &fakeSummaryRepo{deleted: 4}
	app := NewApp(repo, nil)

	deleted, err := app.Cleanup(context.Background(), 5*24*time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("deleted count: want 4, got %d", deleted)
	}

	want := time.Now().Add(-5 * 24 * time.Hour)
	if diff := repo.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff off by %v", diff)
	}
}
