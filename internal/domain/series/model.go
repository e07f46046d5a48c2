package series

import (
	"fmt"
	"time"
)

// Title is a stable series brand, e.g. "Championship Series".
type Title struct {
	ID       string
	Title    string
	Aliases  []string
	Category string
}

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusCompleted Status = "COMPLETED"
)

// Series is one temporal instance of a Title.
type Series struct {
	ID         string
	TitleID    string
	EntityID   string
	VenueID    string
	Name       string
	Year       int
	Month      *int
	Quarter    *int
	StartDate  *time.Time
	EndDate    *time.Time
	EventCount int
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (s Series) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("series id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("series name is required")
	}
	if s.Year <= 0 {
		return fmt.Errorf("series year is required")
	}
	if s.Month != nil && (*s.Month < 1 || *s.Month > 12) {
		return fmt.Errorf("series month must be within 1..12")
	}
	if s.Quarter != nil && (*s.Quarter < 1 || *s.Quarter > 4) {
		return fmt.Errorf("series quarter must be within 1..4")
	}
	return nil
}

// EffectiveMonth is the declared month or the month of StartDate.
func (s Series) EffectiveMonth() (int, bool) {
	if s.Month != nil {
		return *s.Month, true
	}
	if s.StartDate != nil {
		return int(s.StartDate.UTC().Month()), true
	}
	return 0, false
}

// EffectiveQuarter is the declared quarter or the quarter of EffectiveMonth.
func (s Series) EffectiveQuarter() (int, bool) {
	if s.Quarter != nil {
		return *s.Quarter, true
	}
	if m, ok := s.EffectiveMonth(); ok {
		return QuarterOf(m), true
	}
	return 0, false
}

func QuarterOf(month int) int {
	return (month-1)/3 + 1
}
