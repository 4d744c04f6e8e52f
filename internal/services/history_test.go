package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/ledger/ledgertest"
	"trdelnik-backend/internal/models"
)

func startedEvent(block, sessionID uint64, difficulty int, stake string) ledger.Event {
	return ledger.Event{
		Name:      ledger.EventGameStarted,
		Block:     block,
		TxHash:    fmt.Sprintf("0xstart%d", sessionID),
		Timestamp: int64(block) * 12,
		Args: map[string]any{
			"session_id": sessionID,
			"player":     testPlayer,
			"difficulty": difficulty,
			"stake":      stake,
		},
	}
}

func TestReconstructRecentClassifiesOutcomes(t *testing.T) {
	fake := ledgertest.New()

	// Session 4: started, then explicitly lost at step 3.
	fake.AppendEvent(startedEvent(40, 4, 3, "1"))
	fake.AppendEvent(ledger.Event{
		Name:  ledger.EventGameLost,
		Block: 42,
		Args:  map[string]any{"session_id": uint64(4), "step": 3},
	})
	fake.Seed(&ledger.SessionState{SessionID: 4, Player: testPlayer, Difficulty: 3, Stake: "1", CurrentStep: 3, Lost: true})

	// Session 7: started, cashed out.
	fake.AppendEvent(startedEvent(50, 7, 0, "0.05"))
	fake.AppendEvent(ledger.Event{
		Name:  ledger.EventCashout,
		Block: 55,
		Args:  map[string]any{"session_id": uint64(7), "payout": "0.1"},
	})
	fake.Seed(&ledger.SessionState{SessionID: 7, Player: testPlayer, Difficulty: 0, Stake: "0.05", CurrentStep: 5})

	// Session 8: started and abandoned. No terminal event: reported as loss.
	fake.AppendEvent(startedEvent(58, 8, 1, "0.5"))
	fake.Seed(&ledger.SessionState{SessionID: 8, Player: testPlayer, Difficulty: 1, Stake: "0.5", CurrentStep: 2, Active: true})

	fake.SetHead(100)

	svc := NewHistoryService(fake, nil, 1000, 5, time.Minute)
	records, err := svc.ReconstructRecent(context.Background(), 1000, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Newest first.
	if records[0].SessionID != 8 || records[1].SessionID != 7 || records[2].SessionID != 4 {
		t.Fatalf("expected order [8 7 4], got [%d %d %d]", records[0].SessionID, records[1].SessionID, records[2].SessionID)
	}

	abandoned := records[0]
	if abandoned.Result != models.GameResultLoss {
		t.Errorf("no cashout means loss, got %s", abandoned.Result)
	}
	if abandoned.Steps != 2 {
		t.Errorf("expected abandoned game at step 2, got %d", abandoned.Steps)
	}

	win := records[1]
	if win.Result != models.GameResultWin {
		t.Errorf("expected win, got %s", win.Result)
	}
	if win.Payout != "0.1" {
		t.Errorf("expected payout 0.1, got %s", win.Payout)
	}
	if win.Multiplier != "2.00" {
		t.Errorf("expected multiplier 2.00, got %s", win.Multiplier)
	}
	if win.Difficulty != models.DifficultyEasy {
		t.Errorf("expected Easy, got %s", win.Difficulty)
	}

	loss := records[2]
	if loss.Result != models.GameResultLoss {
		t.Errorf("expected loss, got %s", loss.Result)
	}
	if loss.Steps != 3 {
		t.Errorf("expected loss at step 3, got %d", loss.Steps)
	}
	if loss.Difficulty != models.DifficultyHardcore {
		t.Errorf("expected Hardcore, got %s", loss.Difficulty)
	}
}

func TestReconstructRecentSkipsMalformedEvents(t *testing.T) {
	fake := ledgertest.New()

	fake.AppendEvent(startedEvent(50, 7, 0, "0.05"))
	fake.Seed(&ledger.SessionState{SessionID: 7, Player: testPlayer, CurrentStep: 1})

	// Older contract version without a stake argument.
	fake.AppendEvent(ledger.Event{
		Name:  ledger.EventGameStarted,
		Block: 60,
		Args: map[string]any{
			"session_id": uint64(9),
			"player":     testPlayer,
			"difficulty": 0,
		},
	})

	fake.SetHead(100)

	svc := NewHistoryService(fake, nil, 1000, 5, time.Minute)
	records, err := svc.ReconstructRecent(context.Background(), 1000, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected the malformed start to be skipped, got %d records", len(records))
	}
	if records[0].SessionID != 7 {
		t.Errorf("expected session 7, got %d", records[0].SessionID)
	}
}

func TestReconstructRecentSurvivesWindowFailures(t *testing.T) {
	fake := ledgertest.New()

	fake.AppendEvent(startedEvent(40, 4, 3, "1"))
	fake.Seed(&ledger.SessionState{SessionID: 4, Player: testPlayer, CurrentStep: 1})

	fake.AppendEvent(startedEvent(50, 7, 0, "0.05"))
	fake.AppendEvent(ledger.Event{
		Name:  ledger.EventCashout,
		Block: 55,
		Args:  map[string]any{"session_id": uint64(7), "payout": "0.1"},
	})
	fake.Seed(&ledger.SessionState{SessionID: 7, Player: testPlayer, CurrentStep: 5})

	// This start sits in a window that keeps failing.
	fake.AppendEvent(startedEvent(95, 9, 1, "0.5"))
	fake.Seed(&ledger.SessionState{SessionID: 9, Player: testPlayer, CurrentStep: 1})

	fake.SetHead(100)
	fake.QueryErr = func(fromBlock, toBlock uint64) error {
		if fromBlock <= 95 && 95 <= toBlock {
			return fmt.Errorf("gateway overloaded")
		}
		return nil
	}

	svc := NewHistoryService(fake, nil, 1000, 5, time.Minute)
	records, err := svc.ReconstructRecent(context.Background(), 1000, 5)
	if err != nil {
		t.Fatalf("partial history beats no history, got error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records from surviving windows, got %d", len(records))
	}
	if records[0].SessionID != 7 || records[1].SessionID != 4 {
		t.Errorf("expected sessions [7 4], got [%d %d]", records[0].SessionID, records[1].SessionID)
	}
	if records[0].Result != models.GameResultWin {
		t.Errorf("cashout in a healthy window must still classify as win, got %s", records[0].Result)
	}
}

func TestReconstructRecentTruncatesToNewest(t *testing.T) {
	fake := ledgertest.New()

	for i := uint64(1); i <= 8; i++ {
		fake.AppendEvent(startedEvent(10*i, i, 0, "0.01"))
		fake.Seed(&ledger.SessionState{SessionID: i, Player: testPlayer, CurrentStep: 1})
	}
	fake.SetHead(100)

	svc := NewHistoryService(fake, nil, 1000, 5, time.Minute)
	records, err := svc.ReconstructRecent(context.Background(), 1000, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i, expected := range []uint64{8, 7, 6, 5, 4} {
		if records[i].SessionID != expected {
			t.Errorf("position %d: expected session %d, got %d", i, expected, records[i].SessionID)
		}
	}
}

func TestReconstructRecentEmptyLedger(t *testing.T) {
	fake := ledgertest.New()
	fake.SetHead(10)

	svc := NewHistoryService(fake, nil, 1000, 5, time.Minute)
	records, err := svc.ReconstructRecent(context.Background(), 1000, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}
