package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/models"
)

// HistoryService rebuilds completed game records from the ledger's event
// log. The log can only be read in bounded block windows, so every scan is
// partitioned against the client's MaxQueryWindow. The reconciler only
// reads: it never touches live session state and may run alongside it.
type HistoryService struct {
	client       ledger.Client
	redis        *RedisService
	windowBlocks uint64
	maxRecords   int
	cacheTTL     time.Duration
}

func NewHistoryService(client ledger.Client, redis *RedisService, windowBlocks uint64, maxRecords int, cacheTTL time.Duration) *HistoryService {
	return &HistoryService{
		client:       client,
		redis:        redis,
		windowBlocks: windowBlocks,
		maxRecords:   maxRecords,
		cacheTTL:     cacheTTL,
	}
}

// ReconstructRecent merges the GameStarted, GameLost and Cashout event
// streams into per-game records for the most recent sessions. A record is a
// win iff a Cashout event exists for its id; no Cashout means loss, even
// without an explicit GameLost event. Individual window failures and
// malformed events are logged and skipped: partial history beats no
// history.
func (h *HistoryService) ReconstructRecent(ctx context.Context, windowBlocks uint64, maxRecords int) ([]models.HistoricalGameRecord, error) {
	head, err := h.client.HeadBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine ledger head: %v", err)
	}

	var from uint64
	if head > windowBlocks {
		from = head - windowBlocks
	}

	records := make(map[uint64]*models.HistoricalGameRecord)
	for _, ev := range h.scanEvents(ctx, ledger.EventGameStarted, from, head, nil) {
		rec, err := recordFromStart(ev)
		if err != nil {
			logrus.Warnf("skipping malformed %s event in block %d: %v", ev.Name, ev.Block, err)
			continue
		}
		records[rec.SessionID] = rec
	}

	if len(records) == 0 {
		return []models.HistoricalGameRecord{}, nil
	}

	ordered := make([]*models.HistoricalGameRecord, 0, len(records))
	for _, rec := range records {
		ordered = append(ordered, rec)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Block != ordered[j].Block {
			return ordered[i].Block > ordered[j].Block
		}
		return ordered[i].SessionID > ordered[j].SessionID
	})
	if len(ordered) > maxRecords {
		ordered = ordered[:maxRecords]
	}

	out := make([]models.HistoricalGameRecord, 0, len(ordered))
	for _, rec := range ordered {
		h.resolveOutcome(ctx, rec, rec.Block, head)
		out = append(out, *rec)
	}

	return out, nil
}

// resolveOutcome fills in how a started session ended, scanning the
// session's own event trail and reading current contract storage.
func (h *HistoryService) resolveOutcome(ctx context.Context, rec *models.HistoricalGameRecord, from, to uint64) {
	id := rec.SessionID

	for _, ev := range h.scanEvents(ctx, ledger.EventGameLost, from, to, &id) {
		step, ok := ev.Uint64Arg("step")
		if !ok {
			logrus.Warnf("skipping malformed %s event for session %d", ev.Name, id)
			continue
		}
		rec.Steps = int(step)
	}

	for _, ev := range h.scanEvents(ctx, ledger.EventCashout, from, to, &id) {
		payout, ok := ev.StringArg("payout")
		if !ok {
			logrus.Warnf("skipping malformed %s event for session %d", ev.Name, id)
			continue
		}
		rec.Result = models.GameResultWin
		rec.Payout = payout
		rec.Multiplier = models.PayoutMultiplier(payout, rec.Stake)
	}

	state, err := h.client.GetSession(ctx, id)
	if err != nil {
		logrus.Warnf("session %d lookup failed, keeping event-derived fields: %v", id, err)
		return
	}
	if state.CurrentStep > 0 {
		rec.Steps = state.CurrentStep
	}
}

// scanEvents partitions [from, to] into windows no wider than the ledger's
// query bound and collects events sequentially. A failed window is skipped,
// not fatal.
func (h *HistoryService) scanEvents(ctx context.Context, name string, from, to uint64, sessionID *uint64) []ledger.Event {
	window := h.client.MaxQueryWindow()
	if window == 0 {
		window = 1
	}

	var events []ledger.Event
	for lo := from; lo <= to; lo += window {
		hi := lo + window - 1
		if hi > to {
			hi = to
		}

		batch, err := h.client.QueryEvents(ctx, name, lo, hi, sessionID)
		if err != nil {
			logrus.Warnf("skipping %s window [%d,%d]: %v", name, lo, hi, err)
			continue
		}
		events = append(events, batch...)

		if hi == to {
			break
		}
	}

	return events
}

// RecentGames serves the cached reconciliation when fresh enough, falling
// back to a live scan.
func (h *HistoryService) RecentGames(ctx context.Context) ([]models.HistoricalGameRecord, error) {
	if h.redis != nil {
		cached, err := h.redis.GetCachedRecentGames(ctx)
		if err != nil {
			logrus.Warnf("history cache read failed: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	records, err := h.ReconstructRecent(ctx, h.windowBlocks, h.maxRecords)
	if err != nil {
		return nil, err
	}

	h.cache(ctx, records)
	return records, nil
}

// RefreshCache rebuilds the cached records; scheduled periodically.
func (h *HistoryService) RefreshCache(ctx context.Context) error {
	records, err := h.ReconstructRecent(ctx, h.windowBlocks, h.maxRecords)
	if err != nil {
		return err
	}

	h.cache(ctx, records)
	return nil
}

func (h *HistoryService) cache(ctx context.Context, records []models.HistoricalGameRecord) {
	if h.redis == nil {
		return
	}

	if err := h.redis.CacheRecentGames(ctx, records, h.cacheTTL); err != nil {
		logrus.Warnf("history cache write failed: %v", err)
	}
}

func recordFromStart(ev ledger.Event) (*models.HistoricalGameRecord, error) {
	sessionID, ok := ev.Uint64Arg("session_id")
	if !ok {
		return nil, fmt.Errorf("missing session_id")
	}

	player, ok := ev.StringArg("player")
	if !ok {
		return nil, fmt.Errorf("missing player")
	}

	diffIdx, ok := ev.Uint64Arg("difficulty")
	if !ok {
		return nil, fmt.Errorf("missing difficulty")
	}
	difficulty, err := models.DifficultyFromIndex(uint8(diffIdx))
	if err != nil {
		return nil, err
	}

	stake, ok := ev.StringArg("stake")
	if !ok {
		return nil, fmt.Errorf("missing stake")
	}

	return &models.HistoricalGameRecord{
		SessionID:  sessionID,
		Player:     player,
		Difficulty: difficulty,
		Stake:      stake,
		Result:     models.GameResultLoss, // until a Cashout event proves otherwise
		Steps:      1,
		Block:      ev.Block,
		Timestamp:  ev.Timestamp,
		TxHash:     ev.TxHash,
	}, nil
}
