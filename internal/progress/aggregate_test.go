package progress

import (
	"math"
	"testing"
)

type item struct {
	completed bool
}

func isDone(i item) bool { return i.completed }

func TestAggregate(t *testing.T) {
	tests := []struct {
		name          string
		items         []item
		wantTotal     int
		wantCompleted int
		wantPct       float64
	}{
		{"empty", nil, 0, 0, 0},
		{"none done", []item{{}, {}}, 2, 0, 0},
		{"one of three", []item{{true}, {}, {}}, 3, 1, 100.0 / 3},
		{"all done", []item{{true}, {true}}, 2, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.items, isDone)
			if got.TotalItems != tt.wantTotal {
				t.Errorf("TotalItems = %d, want %d", got.TotalItems, tt.wantTotal)
			}
			if got.CompletedItems != tt.wantCompleted {
				t.Errorf("CompletedItems = %d, want %d", got.CompletedItems, tt.wantCompleted)
			}
			if math.Abs(got.ProgressPercentage-tt.wantPct) > 0.001 {
				t.Errorf("ProgressPercentage = %f, want %f", got.ProgressPercentage, tt.wantPct)
			}
		})
	}
}

func TestPercentage_ZeroTotal(t *testing.T) {
	if got := Percentage(0, 0); got != 0 {
		t.Errorf("Percentage(0, 0) = %f, want 0", got)
	}
	if got := Percentage(3, 0); got != 0 {
		t.Errorf("Percentage(3, 0) = %f, want 0", got)
	}
}

func TestSnapshot_DoneAndRemaining(t *testing.T) {
	empty := Snapshot{}
	if empty.Done() {
		t.Error("empty snapshot should not be done")
	}

	partial := Aggregate([]item{{true}, {}}, isDone)
	if partial.Done() {
		t.Error("partial snapshot should not be done")
	}
	if partial.Remaining() != 1 {
		t.Errorf("Remaining() = %d, want 1", partial.Remaining())
	}

	full := Aggregate([]item{{true}}, isDone)
	if !full.Done() {
		t.Error("full snapshot should be done")
	}
}
