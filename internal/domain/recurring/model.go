package recurring

import (
	"fmt"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

type Frequency string

const (
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyBiweekly  Frequency = "BIWEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyIrregular Frequency = "IRREGULAR"
)

// RecurringGame is a template for an event that repeats on a weekday at a venue.
type RecurringGame struct {
	ID       string
	EntityID string
	VenueID  string
	Name     string
	// DayOfWeek uses the upper-case English weekday, matching game query keys.
	DayOfWeek        string
	TypicalBuyIn     float64
	TypicalStartTime string
	TypicalGuarantee *float64
	GameVariant      game.Variant
	GameType         game.Type
	Frequency        Frequency
	TotalOccurrences int
	FirstSeenDate    *time.Time
	LastSeenDate     *time.Time
	IsActive         bool
	MergedInto       *string
	Confidence       float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r RecurringGame) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("recurring game id is required")
	}
	if r.VenueID == "" {
		return fmt.Errorf("recurring game venue id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("recurring game name is required")
	}
	if r.IsActive && r.MergedInto != nil {
		return fmt.Errorf("active recurring game cannot be merged")
	}
	return nil
}

// StartMinutes parses TypicalStartTime ("HH:MM") into minutes after midnight.
func (r RecurringGame) StartMinutes() (int, bool) {
	return ParseClock(r.TypicalStartTime)
}

func ParseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// RecordOccurrence counts one more game against the template.
func (r *RecurringGame) RecordOccurrence(at time.Time) {
	r.TotalOccurrences++
	if r.FirstSeenDate == nil || at.Before(*r.FirstSeenDate) {
		first := at
		r.FirstSeenDate = &first
	}
	if r.LastSeenDate == nil || at.After(*r.LastSeenDate) {
		last := at
		r.LastSeenDate = &last
	}
}
