package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/config"
	"trdelnik-backend/internal/models"
)

// MeritsService talks to the Blockscout Merits points program: reward
// distribution on game start and leaderboard lookups for display.
type MeritsService struct {
	apiURL       string
	partnerURL   string
	apiKey       string
	rewardAmount string
	http         *http.Client
}

func NewMeritsService(cfg *config.Config) *MeritsService {
	return &MeritsService{
		apiURL:       cfg.MeritsAPIURL,
		partnerURL:   cfg.MeritsPartnerAPIURL,
		apiKey:       cfg.MeritsAPIKey,
		rewardAmount: cfg.MeritsRewardAmount,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type meritsDistribution struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type meritsDistributeRequest struct {
	ID                    string               `json:"id"`
	Description           string               `json:"description"`
	Distributions         []meritsDistribution `json:"distributions"`
	CreateMissingAccounts bool                 `json:"create_missing_accounts"`
	ExpectedTotal         string               `json:"expected_total"`
}

// DispatchReward credits the player for a started game. Best effort: every
// failure is logged and swallowed, since reward-service availability must
// not affect a confirmed game start. Each dispatch gets a fresh id, so a
// client-side retry of a start can double-credit; accepted risk.
func (m *MeritsService) DispatchReward(player string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body, err := json.Marshal(meritsDistributeRequest{
		ID:          uuid.New().String(),
		Description: "Trdelnik game started",
		Distributions: []meritsDistribution{
			{Address: player, Amount: m.rewardAmount},
		},
		CreateMissingAccounts: true,
		ExpectedTotal:         m.rewardAmount,
	})
	if err != nil {
		logrus.Warnf("failed to encode merits distribution for %s: %v", player, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.partnerURL+"/distribute", bytes.NewReader(body))
	if err != nil {
		logrus.Warnf("failed to build merits request for %s: %v", player, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		logrus.Warnf("merits distribution for %s failed: %v", player, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logrus.Warnf("merits distribution for %s rejected with HTTP %d", player, resp.StatusCode)
		return
	}

	logrus.Infof("credited %s merits to %s", m.rewardAmount, player)
}

type meritsUserResponse struct {
	Exists bool `json:"exists"`
	User   struct {
		TotalBalance string `json:"total_balance"`
	} `json:"user"`
}

// GetUserInfo reports whether the address is enrolled in the points program
// and its balance.
func (m *MeritsService) GetUserInfo(ctx context.Context, address string) (*models.MeritsUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+"/auth/user/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &models.MeritsUser{Address: address}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request rejected with HTTP %d", resp.StatusCode)
	}

	var body meritsUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode user info response: %v", err)
	}

	return &models.MeritsUser{
		Address:      address,
		Exists:       body.Exists,
		TotalBalance: body.User.TotalBalance,
	}, nil
}

// GetUserRanking fetches the player's leaderboard standing.
func (m *MeritsService) GetUserRanking(ctx context.Context, address string) (*models.MeritsRanking, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.apiURL+"/leaderboard/users/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("leaderboard request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard request rejected with HTTP %d", resp.StatusCode)
	}

	var ranking models.MeritsRanking
	if err := json.NewDecoder(resp.Body).Decode(&ranking); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard response: %v", err)
	}
	ranking.Address = address

	return &ranking, nil
}
