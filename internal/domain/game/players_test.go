package game

import (
	"fmt"
	"testing"
)

func TestSplitPlayerBatches(t *testing.T) {
	t.Parallel()

	players := make([]PlayerResult, 78)
	for i := range players {
		players[i] = PlayerResult{Name: fmt.Sprintf("p%d", i), Rank: i + 1}
	}

	batches := SplitPlayerBatches(players, DefaultPlayerBatchSize)
	sizes := make([]int, 0, len(batches))
	for _, b := range batches {
		sizes = append(sizes, len(b))
	}
	if fmt.Sprint(sizes) != "[25 25 25 3]" {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
	if batches[3][2].Name != "p77" {
		t.Fatalf("last player out of order: %s", batches[3][2].Name)
	}
	if SplitPlayerBatches(nil, 25) != nil {
		t.Fatalf("expected no batches for empty list")
	}
}

func TestBatchDeduplicationID(t *testing.T) {
	t.Parallel()

	if got := BatchDeduplicationID("g-1", 2, 1700000000000); got != "g-1-batch2-1700000000000" {
		t.Fatalf("unexpected dedup id %s", got)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	if ParseStatus("clock stopped") != StatusClockStopped {
		t.Fatalf("expected CLOCK_STOPPED")
	}
	if ParseStatus("weird") != StatusUnknown {
		t.Fatalf("expected UNKNOWN")
	}
	if !StatusRunning.IsLive() || StatusFinished.IsLive() || !StatusScheduled.IsUnfinished() {
		t.Fatalf("unexpected status predicates")
	}
}
