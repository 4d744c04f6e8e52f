package models

import (
	"math"
	"testing"
)

func TestTierConfigs(t *testing.T) {
	tests := []struct {
		difficulty      Difficulty
		maxSteps        int
		startMultiplier float64
	}{
		{DifficultyEasy, 24, 1.02},
		{DifficultyMedium, 22, 1.11},
		{DifficultyHard, 20, 1.22},
		{DifficultyHardcore, 15, 1.63},
	}

	for _, tt := range tests {
		cfg, ok := TierConfigs[tt.difficulty]
		if !ok {
			t.Fatalf("missing tier config for %s", tt.difficulty)
		}
		if cfg.MaxSteps != tt.maxSteps {
			t.Errorf("%s: expected %d max steps, got %d", tt.difficulty, tt.maxSteps, cfg.MaxSteps)
		}
		if cfg.StartMultiplier != tt.startMultiplier {
			t.Errorf("%s: expected start multiplier %v, got %v", tt.difficulty, tt.startMultiplier, cfg.StartMultiplier)
		}
	}
}

func TestMultiplierForZeroStep(t *testing.T) {
	for difficulty := range TierConfigs {
		if m := MultiplierFor(difficulty, 0); m != 1 {
			t.Errorf("%s: expected multiplier 1 at step 0, got %v", difficulty, m)
		}
	}
}

func TestMultiplierForCompounds(t *testing.T) {
	m := MultiplierFor(DifficultyEasy, 2)
	if math.Abs(m-1.0404) > 1e-9 {
		t.Errorf("expected 1.02^2 = 1.0404, got %v", m)
	}

	m = MultiplierFor(DifficultyHardcore, 3)
	expected := 1.63 * 1.63 * 1.63
	if math.Abs(m-expected) > 1e-9 {
		t.Errorf("expected 1.63^3 = %v, got %v", expected, m)
	}
}

func TestMultiplierForStrictlyIncreasing(t *testing.T) {
	for difficulty, cfg := range TierConfigs {
		prev := MultiplierFor(difficulty, 0)
		for step := 1; step <= cfg.MaxSteps; step++ {
			m := MultiplierFor(difficulty, step)
			if m <= prev {
				t.Errorf("%s: multiplier did not increase at step %d: %v <= %v", difficulty, step, m, prev)
			}
			prev = m
		}
	}
}

func TestMultiplierForUnknownDifficulty(t *testing.T) {
	if m := MultiplierFor(Difficulty("Impossible"), 5); m != 1 {
		t.Errorf("expected multiplier 1 for unknown difficulty, got %v", m)
	}
}

func TestDifficultyIndexRoundTrip(t *testing.T) {
	for i, difficulty := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyHardcore} {
		idx, err := difficulty.Index()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", difficulty, err)
		}
		if idx != uint8(i) {
			t.Errorf("%s: expected index %d, got %d", difficulty, i, idx)
		}

		back, err := DifficultyFromIndex(idx)
		if err != nil {
			t.Fatalf("index %d: unexpected error: %v", idx, err)
		}
		if back != difficulty {
			t.Errorf("index %d: expected %s, got %s", idx, difficulty, back)
		}
	}

	if _, err := Difficulty("Nope").Index(); err == nil {
		t.Error("expected error for unknown difficulty")
	}
	if _, err := DifficultyFromIndex(4); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestDifficultyValid(t *testing.T) {
	if !DifficultyEasy.Valid() {
		t.Error("Easy should be valid")
	}
	if Difficulty("easy").Valid() {
		t.Error("difficulty names are case sensitive")
	}
	if Difficulty("").Valid() {
		t.Error("empty difficulty should be invalid")
	}
}
