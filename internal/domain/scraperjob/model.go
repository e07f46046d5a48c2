package scraperjob

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending            Status = "PENDING"
	StatusRunning            Status = "RUNNING"
	StatusCompleted          Status = "COMPLETED"
	StatusStoppedNotFound    Status = "STOPPED_NOT_FOUND"
	StatusStoppedErrors      Status = "STOPPED_ERRORS"
	StatusStoppedBlank       Status = "STOPPED_BLANK"
	StatusStoppedTotalErrors Status = "STOPPED_TOTAL_ERRORS"
	StatusStoppedManual      Status = "STOPPED_MANUAL"
	StatusFailed             Status = "FAILED"
)

func (s Status) IsTerminal() bool {
	return s != StatusPending && s != StatusRunning
}

func (s Status) IsStopped() bool {
	switch s {
	case StatusStoppedNotFound, StatusStoppedErrors, StatusStoppedBlank, StatusStoppedTotalErrors, StatusStoppedManual:
		return true
	}
	return false
}

type Mode string

const (
	ModeBulk    Mode = "bulk"
	ModeRange   Mode = "range"
	ModeGaps    Mode = "gaps"
	ModeUpdates Mode = "updates"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeBulk, ModeRange, ModeGaps, ModeUpdates:
		return true
	}
	return false
}

// Thresholds bound how much failure a job tolerates before stopping itself.
type Thresholds struct {
	MaxConsecutiveNotFound int `json:"maxConsecutiveNotFound"`
	MaxConsecutiveErrors   int `json:"maxConsecutiveErrors"`
	MaxConsecutiveBlanks   int `json:"maxConsecutiveBlanks"`
	MaxTotalErrors         int `json:"maxTotalErrors"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxConsecutiveNotFound: 10,
		MaxConsecutiveErrors:   3,
		MaxConsecutiveBlanks:   5,
		MaxTotalErrors:         15,
	}
}

// WithDefaults fills unset thresholds from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MaxConsecutiveNotFound <= 0 {
		t.MaxConsecutiveNotFound = d.MaxConsecutiveNotFound
	}
	if t.MaxConsecutiveErrors <= 0 {
		t.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	if t.MaxConsecutiveBlanks <= 0 {
		t.MaxConsecutiveBlanks = d.MaxConsecutiveBlanks
	}
	if t.MaxTotalErrors <= 0 {
		t.MaxTotalErrors = d.MaxTotalErrors
	}
	return t
}

type Counters struct {
	Processed           int   `json:"processed"`
	New                 int   `json:"new"`
	Updated             int   `json:"updated"`
	Skipped             int   `json:"skipped"`
	Errors              int   `json:"errors"`
	NotFound            int   `json:"notFound"`
	Blanks              int   `json:"blanks"`
	ConsecutiveNotFound int   `json:"consecutiveNotFound"`
	ConsecutiveErrors   int   `json:"consecutiveErrors"`
	ConsecutiveBlanks   int   `json:"consecutiveBlanks"`
	S3CacheHits         int   `json:"s3CacheHits"`
	LastProcessedID     int64 `json:"lastProcessedId"`
}

// Outcome classifies one processed URL for counter bookkeeping.
type Outcome string

const (
	OutcomeNew      Outcome = "NEW"
	OutcomeUpdated  Outcome = "UPDATED"
	OutcomeSkipped  Outcome = "SKIPPED"
	OutcomeNotFound Outcome = "NOT_FOUND"
	OutcomeBlank    Outcome = "BLANK"
	OutcomeError    Outcome = "ERROR"
)

// Record folds one outcome into the counters. Any success clears every streak.
func (c *Counters) Record(o Outcome) {
	c.Processed++
	switch o {
	case OutcomeNew, OutcomeUpdated, OutcomeSkipped:
		switch o {
		case OutcomeNew:
			c.New++
		case OutcomeUpdated:
			c.Updated++
		default:
			c.Skipped++
		}
		c.ConsecutiveNotFound = 0
		c.ConsecutiveErrors = 0
		c.ConsecutiveBlanks = 0
	case OutcomeNotFound:
		c.NotFound++
		c.ConsecutiveNotFound++
	case OutcomeBlank:
		c.Blanks++
		c.ConsecutiveBlanks++
	case OutcomeError:
		c.Errors++
		c.ConsecutiveErrors++
	}
}

// StopStatus evaluates the stopping rules. A streak stops the job once it reaches
// its threshold; total errors stop it once they exceed theirs.
func (c Counters) StopStatus(t Thresholds) (Status, string, bool) {
	switch {
	case c.ConsecutiveNotFound >= t.MaxConsecutiveNotFound:
		return StatusStoppedNotFound, fmt.Sprintf("%d consecutive not found", c.ConsecutiveNotFound), true
	case c.ConsecutiveErrors >= t.MaxConsecutiveErrors:
		return StatusStoppedErrors, fmt.Sprintf("%d consecutive errors", c.ConsecutiveErrors), true
	case c.ConsecutiveBlanks >= t.MaxConsecutiveBlanks:
		return StatusStoppedBlank, fmt.Sprintf("%d consecutive blank pages", c.ConsecutiveBlanks), true
	case c.Errors > t.MaxTotalErrors:
		return StatusStoppedTotalErrors, fmt.Sprintf("%d total errors", c.Errors), true
	}
	return "", "", false
}

// Job is one orchestrated scraping run over a tournament id sequence.
type Job struct {
	ID          string
	EntityID    string
	Status      Status
	Mode        Mode
	StartID     *int64
	EndID       *int64
	MaxID       *int64
	GapIDs      []int64
	BulkCount   *int
	Thresholds  Thresholds
	Options     Options
	Counters    Counters
	TriggeredBy string
	StartTime   time.Time
	EndTime     *time.Time
	// DurationSeconds is set when the job reaches a terminal status.
	DurationSeconds *float64
	StopReason      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Options are per-job skip flags.
type Options struct {
	SkipFinished     bool `json:"skipFinished"`
	SkipInProgress   bool `json:"skipInProgress"`
	SkipNotFoundGaps bool `json:"skipNotFoundGaps"`
	ForceRefresh     bool `json:"forceRefresh"`
}

// Finish moves the job to a terminal status and stamps timing.
func (j *Job) Finish(status Status, reason string, at time.Time) {
	j.Status = status
	j.StopReason = reason
	end := at
	j.EndTime = &end
	d := at.Sub(j.StartTime).Seconds()
	j.DurationSeconds = &d
	j.UpdatedAt = at
}

// MaxRangeSpan caps how many tournament ids one range job may visit.
const MaxRangeSpan int64 = 10000

func (j Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if j.EntityID == "" {
		return fmt.Errorf("job entity id is required")
	}
	if !j.Mode.Valid() {
		return fmt.Errorf("job mode %q is invalid", j.Mode)
	}
	switch j.Mode {
	case ModeRange:
		if j.StartID == nil || j.EndID == nil {
			return fmt.Errorf("range mode requires startId and endId")
		}
		if *j.EndID < *j.StartID {
			return fmt.Errorf("endId must be >= startId")
		}
		if span := *j.EndID - *j.StartID + 1; span > MaxRangeSpan {
			return fmt.Errorf("range spans %d ids, at most %d allowed", span, MaxRangeSpan)
		}
	case ModeBulk:
		if j.BulkCount != nil && *j.BulkCount <= 0 {
			return fmt.Errorf("bulkCount must be > 0")
		}
	}
	return nil
}

// State is the per-entity cache of gap analysis.
type State struct {
	EntityID        string
	HighestStoredID int64
	LowestStoredID  int64
	TotalGames      int
	KnownGapRanges  []GapRange
	// MissingCount covers the whole scan range, even when KnownGapRanges was cut short.
	MissingCount    int64
	GapsTruncated   bool
	ScanStartID     int64
	ScanEndID       int64
	LastGapScanAt   *time.Time
	UpdatedAt       time.Time
}

// GapRange is an inclusive run of missing tournament ids.
type GapRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Count int64 `json:"count"`
}
