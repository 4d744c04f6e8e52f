package models

import (
	"fmt"
	"math"
)

type Difficulty string

const (
	DifficultyEasy     Difficulty = "Easy"
	DifficultyMedium   Difficulty = "Medium"
	DifficultyHard     Difficulty = "Hard"
	DifficultyHardcore Difficulty = "Hardcore"
)

// TierConfig is the fixed configuration of one difficulty tier. MaxWin and
// WinProbability are informational; the ledger is the outcome authority.
type TierConfig struct {
	MaxSteps        int     `json:"max_steps"`
	StartMultiplier float64 `json:"start_multiplier"`
	MaxWin          float64 `json:"max_win"`
	WinProbability  float64 `json:"win_probability"`
}

// TierConfigs mirrors the contract's multiplier tables. Never mutated at
// runtime; owner-side setMultipliers only affects future deployments.
var TierConfigs = map[Difficulty]TierConfig{
	DifficultyEasy:     {MaxSteps: 24, StartMultiplier: 1.02, MaxWin: 24.50, WinProbability: 96},
	DifficultyMedium:   {MaxSteps: 22, StartMultiplier: 1.11, MaxWin: 2254, WinProbability: 88},
	DifficultyHard:     {MaxSteps: 20, StartMultiplier: 1.22, MaxWin: 52067.39, WinProbability: 80},
	DifficultyHardcore: {MaxSteps: 15, StartMultiplier: 1.63, MaxWin: 3203384.80, WinProbability: 60},
}

// difficultyOrder matches the contract's uint8 difficulty encoding.
var difficultyOrder = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyHardcore}

func (d Difficulty) Valid() bool {
	_, ok := TierConfigs[d]
	return ok
}

// Index returns the contract encoding of the difficulty (Easy = 0).
func (d Difficulty) Index() (uint8, error) {
	for i, cand := range difficultyOrder {
		if cand == d {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("invalid difficulty: %s", d)
}

// DifficultyFromIndex decodes the contract's difficulty encoding.
func DifficultyFromIndex(i uint8) (Difficulty, error) {
	if int(i) >= len(difficultyOrder) {
		return "", fmt.Errorf("invalid difficulty index: %d", i)
	}
	return difficultyOrder[i], nil
}

// MultiplierFor returns the payout multiplier after step confirmed steps of
// the given tier: startMultiplier^step, 1 at step zero. Callers are
// responsible for keeping step within [0, MaxSteps]; the value is never
// rounded here, only at presentation boundaries.
func MultiplierFor(d Difficulty, step int) float64 {
	if step == 0 {
		return 1
	}

	cfg, ok := TierConfigs[d]
	if !ok {
		return 1
	}

	return math.Pow(cfg.StartMultiplier, float64(step))
}
