package scraperjob

import "testing"

func TestCountersResetStreaksOnSuccess(t *testing.T) {
	t.Parallel()

	th := Thresholds{MaxConsecutiveNotFound: 3, MaxConsecutiveErrors: 3}.WithDefaults()
	var c Counters
	sequence := []Outcome{OutcomeNotFound, OutcomeNotFound, OutcomeNew, OutcomeNotFound, OutcomeNotFound}
	for _, o := range sequence {
		c.Record(o)
		if _, _, stop := c.StopStatus(th); stop {
			t.Fatalf("stopped early after %+v", c)
		}
	}

	c.Record(OutcomeNotFound)
	status, reason, stop := c.StopStatus(th)
	if !stop || status != StatusStoppedNotFound {
		t.Fatalf("expected STOPPED_NOT_FOUND, got %s %v", status, stop)
	}
	if reason != "3 consecutive not found" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if c.NotFound != 5 || c.New != 1 || c.Processed != 6 {
		t.Fatalf("unexpected counters %+v", c)
	}
}

func TestTotalErrorsMustExceedThreshold(t *testing.T) {
	t.Parallel()

	th := Thresholds{MaxConsecutiveErrors: 100, MaxTotalErrors: 2}.WithDefaults()
	var c Counters
	c.Record(OutcomeError)
	c.Record(OutcomeSkipped)
	c.Record(OutcomeError)
	if _, _, stop := c.StopStatus(th); stop {
		t.Fatalf("two errors should not exceed threshold of two")
	}
	c.Record(OutcomeError)
	if status, _, stop := c.StopStatus(th); !stop || status != StatusStoppedTotalErrors {
		t.Fatalf("expected STOPPED_TOTAL_ERRORS, got %s", status)
	}
}

func TestDefaultThresholds(t *testing.T) {
	t.Parallel()

	got := Thresholds{}.WithDefaults()
	if got != (Thresholds{10, 3, 5, 15}) {
		t.Fatalf("unexpected defaults %+v", got)
	}
}

func TestValidateRangeMode(t *testing.T) {
	t.Parallel()

	start, end := int64(10), int64(5)
	j := Job{ID: "j1", EntityID: "e1", Mode: ModeRange, StartID: &start, EndID: &end}
	if err := j.Validate(); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	j.EndID = &start
	if err := j.Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	widest := start + MaxRangeSpan - 1
	j.EndID = &widest
	if err := j.Validate(); err != nil {
		t.Fatalf("a range of exactly %d ids must pass: %v", MaxRangeSpan, err)
	}
	tooWide := widest + 1
	j.EndID = &tooWide
	if err := j.Validate(); err == nil {
		t.Fatalf("expected error for a range wider than %d ids", MaxRangeSpan)
	}
}
