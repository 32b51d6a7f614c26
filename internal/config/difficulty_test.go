package config

import "testing"

func TestDifficultyDisabled(t *testing.T) {
	d := NewDifficultyManager(DifficultyConfig{Enabled: false, InitialLevel: 0.7})
	if d.Level(100, 1000) != 0 {
		t.Error("disabled manager should report level 0")
	}
	if d.Speed(200, 100, 1000) != 200 {
		t.Error("disabled manager should keep base speed")
	}
}

func TestDifficultyScoreProgression(t *testing.T) {
	d := NewDifficultyManager(DifficultyConfig{
		Enabled:     true,
		Progression: ProgressionConfig{Type: "score", MaxAt: 10},
		Scaling:     ScalingConfig{SpeedMultiplier: 1.0, GapReduction: 40},
	})

	tests := []struct {
		score int
		level float64
	}{
		{0, 0},
		{5, 0.5},
		{10, 1},
		{50, 1},
	}
	for _, tc := range tests {
		if got := d.Level(tc.score, 0); got != tc.level {
			t.Errorf("Level(%d) = %v, want %v", tc.score, got, tc.level)
		}
	}

	if got := d.Speed(200, 10, 0); got != 400 {
		t.Errorf("Speed at max = %v, want 400", got)
	}
	if got := d.GapSize(180, 160, 10, 0); got != 160 {
		t.Errorf("GapSize should clamp to min, got %v", got)
	}
	if got := d.GapSize(180, 120, 5, 0); got != 160 {
		t.Errorf("GapSize at half = %v, want 160", got)
	}
}
