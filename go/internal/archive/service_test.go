package archive

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(repo *fakeSummaryRepo) *httptest.Server {
	mux := http.NewServeMux()
	NewService(NewApp(repo, nil)).RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func TestHandleHistoryPassesFilter(t *testing.T) {
	repo := &fakeSummaryRepo{}
	srv := newTestService(repo)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions?code=ABC123&winner=alice&from=2026-03-01T00:00:00Z")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	if repo.historyF.Code != "ABC123" || repo.historyF.Winner != "alice" {
		t.Fatalf("filter not forwarded: %+v", repo.historyF)
	}
	if repo.historyF.From == nil || !repo.historyF.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from filter not parsed: %v", repo.historyF.From)
	}
}

func TestHandleHistoryRejectsBadTimestamp(t *testing.T) {
	srv := newTestService(&fakeSummaryRepo{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions?from=yesterday")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: want 400, got %d", resp.StatusCode)
	}
}

func TestHandleGetByCodeNotFound(t *testing.T) {
	srv := newTestService(&fakeSummaryRepo{getErr: ErrSummaryNotFound})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/NOPE")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: want 404, got %d", resp.StatusCode)
	}
}

func TestHandleGetByCode(t *testing.T) {
	summary := sampleSummary()
	srv := newTestService(&fakeSummaryRepo{getSummary: &summary})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions/ABC123")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var body struct {
		Session struct {
			Code   string  `json:"code"`
			Winner *string `json:"winner"`
		} `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session.Code != "ABC123" || body.Session.Winner == nil || *body.Session.Winner != "alice" {
		t.Fatalf("unexpected body: %+v", body.Session)
	}
}

func TestHandleCleanup(t *testing.T) {
	repo := &fakeSummaryRepo{deleted: 2}
	srv := newTestService(repo)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/cleanup", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var body struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Deleted != 2 {
		t.Fatalf("deleted: want 2, got %d", body.Deleted)
	}
}
