package models

import "time"

type GameStatus string

const (
	GameStatusActive    GameStatus = "active"
	GameStatusLost      GameStatus = "lost"
	GameStatusCashedOut GameStatus = "cashed_out"
)

// StepResult records one resolved step, including the implicit first step
// that the contract resolves as part of starting a game.
type StepResult struct {
	Step       int       `json:"step"`
	Succeeded  bool      `json:"succeeded"`
	ObservedAt time.Time `json:"observed_at"`
}

// GameSession is the client-side mirror of one wager on the ledger. It is
// materialized with a SessionID only once the start transaction confirms.
// Amounts are decimal strings in native currency units; Payout is recorded
// verbatim as confirmed by the ledger, never recomputed locally.
type GameSession struct {
	SessionID   uint64       `json:"session_id" redis:"session_id"`
	Player      string       `json:"player" redis:"player"`
	Difficulty  Difficulty   `json:"difficulty" redis:"difficulty"`
	Stake       string       `json:"stake" redis:"stake"`
	CurrentStep int          `json:"current_step" redis:"current_step"`
	Status      GameStatus   `json:"status" redis:"status"`
	StepHistory []StepResult `json:"step_history" redis:"step_history"`
	Payout      string       `json:"payout,omitempty" redis:"payout"`
	StartedAt   time.Time    `json:"started_at" redis:"started_at"`
	EndedAt     time.Time    `json:"ended_at,omitempty" redis:"ended_at"`
}

// CurrentMultiplier derives the live multiplier from difficulty and step
// count. It is never stored.
func (s *GameSession) CurrentMultiplier() float64 {
	return MultiplierFor(s.Difficulty, s.CurrentStep)
}

// Terminal reports whether the session can no longer change.
func (s *GameSession) Terminal() bool {
	return s.Status == GameStatusLost || s.Status == GameStatusCashedOut
}

// Clone returns an independent copy safe to hand to readers.
func (s *GameSession) Clone() *GameSession {
	cp := *s
	cp.StepHistory = append([]StepResult(nil), s.StepHistory...)
	return &cp
}

type GameResult string

const (
	GameResultWin  GameResult = "win"
	GameResultLoss GameResult = "loss"
)

// HistoricalGameRecord is a read-only projection of a finished session,
// reconstructed from the ledger's GameStarted/GameLost/Cashout event log.
// A record is a win iff a Cashout event was found for its session id;
// everything else is reported as a loss, including sessions that were
// abandoned mid-game.
type HistoricalGameRecord struct {
	SessionID  uint64     `json:"session_id"`
	Player     string     `json:"player"`
	Difficulty Difficulty `json:"difficulty"`
	Stake      string     `json:"stake"`
	Result     GameResult `json:"result"`
	Steps      int        `json:"steps"`
	Multiplier string     `json:"multiplier,omitempty"`
	Payout     string     `json:"payout,omitempty"`
	Block      uint64     `json:"block"`
	Timestamp  int64      `json:"timestamp"`
	TxHash     string     `json:"transaction_hash,omitempty"`
}

// ArchivedGame is the summary blob written to the off-chain archive when a
// session reaches a terminal state, keyed game-{sessionId}.json.
type ArchivedGame struct {
	SessionID   uint64       `json:"game_id"`
	Player      string       `json:"player"`
	Difficulty  Difficulty   `json:"difficulty"`
	Stake       string       `json:"bet"`
	Result      GameResult   `json:"result"`
	Steps       int          `json:"steps"`
	Multiplier  string       `json:"multiplier,omitempty"`
	Payout      string       `json:"payout,omitempty"`
	Timestamp   int64        `json:"timestamp"`
	StepHistory []StepResult `json:"step_history"`
}

// MeritsRanking is the subset of the points-service leaderboard response
// surfaced to the client.
type MeritsRanking struct {
	Address      string `json:"address"`
	TotalBalance string `json:"total_balance"`
	UsersBelow   string `json:"users_below"`
	TopPercent   string `json:"top_percent"`
}

// MeritsUser is the points-service enrollment record for one address.
type MeritsUser struct {
	Address      string `json:"address"`
	Exists       bool   `json:"exists"`
	TotalBalance string `json:"total_balance"`
}
