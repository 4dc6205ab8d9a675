package match_test

import (
	"testing"

	"github.com/MrWong99/feihua/internal/match"
)

func TestEditDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "床前明月光", "床前明月光", 0},
		{"single substitution", "床前明悦光", "床前明月光", 1},
		{"single deletion", "床前明月", "床前明月光", 1},
		{"single insertion", "床前明月光光", "床前明月光", 1},
		{"two substitutions", "床前星辰光", "床前明月光", 2},
		{"empty vs verse", "", "床前明月光", 5},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := match.EditDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("EditDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEditDistance_Symmetric(t *testing.T) {
	t.Parallel()

	a, b := "举头望明月", "低头思故乡"
	if d1, d2 := match.EditDistance(a, b), match.EditDistance(b, a); d1 != d2 {
		t.Errorf("EditDistance not symmetric: %d vs %d", d1, d2)
	}
}
