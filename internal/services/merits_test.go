package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"trdelnik-backend/internal/config"
)

func TestDispatchReward(t *testing.T) {
	received := make(chan meritsDistributeRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/distribute" {
			t.Errorf("expected /distribute, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected partner API key, got %q", r.Header.Get("Authorization"))
		}

		var req meritsDistributeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("malformed distribution request: %v", err)
		}
		received <- req

		json.NewEncoder(w).Encode(map[string]any{"accounts_distributed": 1})
	}))
	defer srv.Close()

	svc := NewMeritsService(&config.Config{
		MeritsPartnerAPIURL: srv.URL,
		MeritsAPIKey:        "test-key",
		MeritsRewardAmount:  "10",
	})

	svc.DispatchReward(testPlayer)

	req := <-received
	if req.ID == "" {
		t.Error("each dispatch needs a distribution id")
	}
	if len(req.Distributions) != 1 {
		t.Fatalf("expected 1 distribution, got %d", len(req.Distributions))
	}
	if req.Distributions[0].Address != testPlayer || req.Distributions[0].Amount != "10" {
		t.Errorf("unexpected distribution: %+v", req.Distributions[0])
	}
	if req.ExpectedTotal != "10" {
		t.Errorf("expected total 10, got %s", req.ExpectedTotal)
	}
	if !req.CreateMissingAccounts {
		t.Error("first-time players must get an account created")
	}
}

func TestDispatchRewardSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewMeritsService(&config.Config{
		MeritsPartnerAPIURL: srv.URL,
		MeritsRewardAmount:  "10",
	})

	// Must not panic or propagate: rewards are best effort.
	svc.DispatchReward(testPlayer)
}

func TestGetUserRanking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leaderboard/users/"+testPlayer {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"total_balance": "120",
			"users_below":   "98",
			"top_percent":   "2.5",
		})
	}))
	defer srv.Close()

	svc := NewMeritsService(&config.Config{MeritsAPIURL: srv.URL})

	ranking, err := svc.GetUserRanking(context.Background(), testPlayer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ranking.Address != testPlayer {
		t.Errorf("expected address %s, got %s", testPlayer, ranking.Address)
	}
	if ranking.TotalBalance != "120" {
		t.Errorf("expected balance 120, got %s", ranking.TotalBalance)
	}
	if ranking.TopPercent != "2.5" {
		t.Errorf("expected top percent 2.5, got %s", ranking.TopPercent)
	}
}

func TestGetUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/user/"+testPlayer {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"exists": true,
			"user":   map[string]string{"total_balance": "120"},
		})
	}))
	defer srv.Close()

	svc := NewMeritsService(&config.Config{MeritsAPIURL: srv.URL})

	user, err := svc.GetUserInfo(context.Background(), testPlayer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.Exists {
		t.Error("expected enrolled user")
	}
	if user.TotalBalance != "120" {
		t.Errorf("expected balance 120, got %s", user.TotalBalance)
	}
}

func TestGetUserInfoUnknownAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := NewMeritsService(&config.Config{MeritsAPIURL: srv.URL})

	user, err := svc.GetUserInfo(context.Background(), testPlayer)
	if err != nil {
		t.Fatalf("an unknown address is not an error: %v", err)
	}
	if user.Exists {
		t.Error("expected unenrolled user")
	}
}

func TestGetUserRankingRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := NewMeritsService(&config.Config{MeritsAPIURL: srv.URL})

	if _, err := svc.GetUserRanking(context.Background(), testPlayer); err == nil {
		t.Error("expected error for rejected leaderboard lookup")
	}
}
