package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trdelnik-backend/internal/ledger"
	"trdelnik-backend/internal/models"
)

// phase tracks what, if anything, is in flight for a live session. Stepping
// and CashingOut act as a mutual-exclusion lock over the session: a second
// request while one is pending is rejected locally, never queued.
type phase int

const (
	phaseStarting phase = iota
	phaseActive
	phaseStepping
	phaseCashingOut
)

type liveGame struct {
	session *models.GameSession
	phase   phase
}

// GameService owns the client-visible lifecycle of game sessions, one live
// session per player. It drives the ledger adapter and reconciles the
// in-memory session against confirmed outcomes; the ledger remains the
// authority over funds and randomness.
type GameService struct {
	adapter *ledger.Adapter
	redis   *RedisService
	archive *ArchiveService
	merits  *MeritsService
	notify  func(player string, session *models.GameSession)

	mu   sync.Mutex
	live map[string]*liveGame
}

func NewGameService(adapter *ledger.Adapter, redis *RedisService, archive *ArchiveService, merits *MeritsService) *GameService {
	return &GameService{
		adapter: adapter,
		redis:   redis,
		archive: archive,
		merits:  merits,
		live:    make(map[string]*liveGame),
	}
}

// SetNotify installs a callback invoked with a session copy after every
// confirmed state change.
func (g *GameService) SetNotify(fn func(player string, session *models.GameSession)) {
	g.notify = fn
}

// StartGame submits a new wager and materializes the session once the
// ledger confirms it. The contract resolves the first step as part of
// starting, so a confirmed session begins at step 1.
func (g *GameService) StartGame(ctx context.Context, player string, difficulty models.Difficulty, stake string) (*models.GameSession, error) {
	if !difficulty.Valid() {
		return nil, &ledger.ValidationError{Reason: fmt.Sprintf("invalid difficulty: %s", difficulty)}
	}

	if !models.ValidStake(stake) {
		return nil, &ledger.ValidationError{Reason: "stake must be a positive amount"}
	}

	g.mu.Lock()
	if lg, ok := g.live[player]; ok {
		if lg.session == nil || !lg.session.Terminal() {
			g.mu.Unlock()
			return nil, fmt.Errorf("a game is already in progress for %s", player)
		}
	}
	g.live[player] = &liveGame{phase: phaseStarting}
	g.mu.Unlock()

	out, err := g.adapter.StartGame(ctx, difficulty, stake)

	g.mu.Lock()
	if err != nil {
		delete(g.live, player)
		g.mu.Unlock()
		return nil, err
	}

	session := &models.GameSession{
		SessionID:   out.SessionID,
		Player:      player,
		Difficulty:  difficulty,
		Stake:       out.Stake,
		CurrentStep: 1,
		Status:      models.GameStatusActive,
		StepHistory: []models.StepResult{
			{Step: 1, Succeeded: true, ObservedAt: time.Now()},
		},
		StartedAt: time.Now(),
	}
	g.live[player] = &liveGame{session: session, phase: phaseActive}
	view := session.Clone()
	g.mu.Unlock()

	metricGamesStarted.Inc()
	g.snapshot(ctx, view)
	g.publish(player, view)

	// Points credit is independent of the game: failures are logged inside
	// the dispatcher and never roll back a confirmed start.
	if g.merits != nil {
		go g.merits.DispatchReward(player)
	}

	return view, nil
}

// PlayStep submits the next step of the player's live session. On a failed
// step the session transitions to Lost; on reaching the tier's step ceiling
// the accumulated winnings are secured with an automatic cashout.
func (g *GameService) PlayStep(ctx context.Context, player string) (*models.GameSession, error) {
	g.mu.Lock()
	lg, err := g.checkLive(player)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	lg.phase = phaseStepping
	sessionID := lg.session.SessionID
	difficulty := lg.session.Difficulty
	g.mu.Unlock()

	out, err := g.adapter.PlayStep(ctx, sessionID)

	g.mu.Lock()
	lg.phase = phaseActive
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	// Clone before releasing the mutex: once the phase is back to Active a
	// concurrent request may mutate lg.session, so everything after the
	// unlock works from this private copy.
	now := time.Now()
	if out.Succeeded {
		lg.session.CurrentStep = out.NewStep
		lg.session.StepHistory = append(lg.session.StepHistory, models.StepResult{
			Step:       out.NewStep,
			Succeeded:  true,
			ObservedAt: now,
		})
		view := lg.session.Clone()
		maxed := out.NewStep >= models.TierConfigs[difficulty].MaxSteps
		g.mu.Unlock()

		metricStepsPlayed.WithLabelValues("succeeded").Inc()
		g.snapshot(ctx, view)
		g.publish(player, view)

		if maxed {
			// Step ceiling reached: secure the winnings. If the cashout
			// fails the session simply stays Active at the ceiling and the
			// player can retry manually.
			cashed, err := g.CashOut(ctx, player)
			if err != nil {
				logrus.Warnf("auto-cashout of session %d failed: %v", sessionID, err)
				return view, nil
			}
			return cashed, nil
		}

		return view, nil
	}

	lg.session.StepHistory = append(lg.session.StepHistory, models.StepResult{
		Step:       out.NewStep,
		Succeeded:  false,
		ObservedAt: now,
	})
	lg.session.Status = models.GameStatusLost
	lg.session.EndedAt = now
	view := lg.session.Clone()
	g.mu.Unlock()

	metricStepsPlayed.WithLabelValues("failed").Inc()
	g.snapshot(ctx, view)
	g.publish(player, view)
	g.archiveAsync(view)

	return view, nil
}

// CashOut settles the player's live session at its current multiplier. The
// payout is recorded exactly as the ledger confirms it; fee and precision
// effects make local recomputation unreliable. An InsolvencyError leaves
// the session Active: the ledger lacks reserve right now, the game itself
// is not over.
func (g *GameService) CashOut(ctx context.Context, player string) (*models.GameSession, error) {
	g.mu.Lock()
	lg, err := g.checkLive(player)
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	if lg.session.CurrentStep == 0 {
		g.mu.Unlock()
		return nil, &ledger.ValidationError{Reason: "cannot cash out before any step is confirmed"}
	}

	lg.phase = phaseCashingOut
	sessionID := lg.session.SessionID
	g.mu.Unlock()

	out, err := g.adapter.Cashout(ctx, sessionID)

	g.mu.Lock()
	lg.phase = phaseActive
	if err != nil {
		g.mu.Unlock()
		return nil, err
	}

	lg.session.Payout = out.Payout
	lg.session.Status = models.GameStatusCashedOut
	lg.session.EndedAt = time.Now()
	view := lg.session.Clone()
	g.mu.Unlock()

	metricCashouts.Inc()
	g.snapshot(ctx, view)
	g.publish(player, view)
	g.archiveAsync(view)

	return view, nil
}

// CurrentSession returns a copy of the player's live session, if any.
func (g *GameService) CurrentSession(player string) (*models.GameSession, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lg, ok := g.live[player]
	if !ok || lg.session == nil {
		return nil, false
	}

	return lg.session.Clone(), true
}

// InFlight reports whether a ledger request is pending for the player.
func (g *GameService) InFlight(player string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	lg, ok := g.live[player]
	return ok && lg.phase != phaseActive
}

// checkLive validates that the player has a live, settled-state session
// ready for the next request. Callers must hold g.mu.
func (g *GameService) checkLive(player string) (*liveGame, error) {
	lg, ok := g.live[player]
	if !ok || lg.session == nil {
		return nil, fmt.Errorf("no active game for %s", player)
	}

	if lg.session.Terminal() {
		return nil, fmt.Errorf("game %d already ended (%s)", lg.session.SessionID, lg.session.Status)
	}

	if lg.phase != phaseActive {
		return nil, fmt.Errorf("another request for game %d is awaiting confirmation", lg.session.SessionID)
	}

	return lg, nil
}

// snapshot mirrors the session to Redis, best effort.
func (g *GameService) snapshot(ctx context.Context, session *models.GameSession) {
	if g.redis == nil {
		return
	}

	if err := g.redis.SaveSessionSnapshot(ctx, session.Clone()); err != nil {
		logrus.Warnf("failed to snapshot session %d: %v", session.SessionID, err)
	}
}

func (g *GameService) publish(player string, session *models.GameSession) {
	if g.notify != nil {
		g.notify(player, session.Clone())
	}
}

// archiveAsync writes a terminal session's summary to the blob archive.
// Best effort: archival failure never alters game status and is not
// retried.
func (g *GameService) archiveAsync(session *models.GameSession) {
	if g.archive == nil {
		return
	}

	record := summarize(session)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := g.archive.SaveGame(ctx, record); err != nil {
			logrus.Warnf("failed to archive session %d: %v", record.SessionID, err)
		}
	}()
}

func summarize(session *models.GameSession) *models.ArchivedGame {
	record := &models.ArchivedGame{
		SessionID:   session.SessionID,
		Player:      session.Player,
		Difficulty:  session.Difficulty,
		Stake:       session.Stake,
		Result:      models.GameResultLoss,
		Steps:       session.CurrentStep,
		Timestamp:   time.Now().Unix(),
		StepHistory: append([]models.StepResult(nil), session.StepHistory...),
	}

	if session.Status == models.GameStatusCashedOut {
		record.Result = models.GameResultWin
		record.Payout = session.Payout
		record.Multiplier = models.PayoutMultiplier(session.Payout, session.Stake)
	}

	return record
}
