package game

import (
	"fmt"
	"strings"
	"time"
)

type Type string

const (
	TypeTournament Type = "TOURNAMENT"
	TypeCash       Type = "CASH"
)

type Variant string

const (
	VariantNLHE    Variant = "NLHE"
	VariantPLO     Variant = "PLO"
	VariantPLO5    Variant = "PLO5"
	VariantPLO6    Variant = "PLO6"
	VariantPLOHiLo Variant = "PLOHILO"
	VariantLHE     Variant = "LHE"
	VariantMixed   Variant = "MIXED"
	VariantOther   Variant = "OTHER"
)

type Status string

const (
	StatusScheduled    Status = "SCHEDULED"
	StatusRegistering  Status = "REGISTERING"
	StatusRunning      Status = "RUNNING"
	StatusClockStopped Status = "CLOCK_STOPPED"
	StatusFinished     Status = "FINISHED"
	StatusCompleted    Status = "COMPLETED"
	StatusCancelled    Status = "CANCELLED"
	StatusNotInUse     Status = "NOT_IN_USE"
	StatusNotPublished Status = "NOT_PUBLISHED"
	StatusUnknown      Status = "UNKNOWN"
)

var knownStatuses = map[Status]struct{}{
	StatusScheduled: {}, StatusRegistering: {}, StatusRunning: {}, StatusClockStopped: {},
	StatusFinished: {}, StatusCompleted: {}, StatusCancelled: {}, StatusNotInUse: {},
	StatusNotPublished: {}, StatusUnknown: {},
}

// ParseStatus maps free text onto a Status; anything unrecognised is UNKNOWN.
func ParseStatus(raw string) Status {
	s := Status(strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, " ", "_"))))
	if _, ok := knownStatuses[s]; ok {
		return s
	}
	return StatusUnknown
}

// IsLive reports whether players are still in play.
func (s Status) IsLive() bool {
	switch s {
	case StatusRegistering, StatusRunning, StatusClockStopped:
		return true
	}
	return false
}

// IsUnfinished reports whether the game can still change on the source site.
func (s Status) IsUnfinished() bool {
	return s == StatusScheduled || s.IsLive()
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusCompleted, StatusCancelled, StatusNotInUse:
		return true
	}
	return false
}

type AssignmentStatus string

const (
	AssignmentManual        AssignmentStatus = "MANUAL"
	AssignmentAutoAssigned  AssignmentStatus = "AUTO_ASSIGNED"
	AssignmentPending       AssignmentStatus = "PENDING"
	AssignmentNotApplicable AssignmentStatus = "NOT_APPLICABLE"
)

// NormalizeConfidence forces confidence to 0 for statuses that carry no assignment.
func NormalizeConfidence(status AssignmentStatus, confidence float64) float64 {
	if status == AssignmentPending || status == AssignmentNotApplicable {
		return 0
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

type ConsolidationType string

const (
	ConsolidationNone   ConsolidationType = ""
	ConsolidationParent ConsolidationType = "PARENT"
	ConsolidationChild  ConsolidationType = "CHILD"
)

// UnassignedVenueID is the per-entity sentinel venue.
const UnassignedVenueID = "UNASSIGNED"

// Game is one tournament or cash session scraped from an entity's site.
type Game struct {
	ID           string
	EntityID     string
	TournamentID int64
	SourceURL    string

	Name              string
	GameType          Type
	GameVariant       Variant
	GameStatus        Status
	GameStartDateTime time.Time
	GameEndDateTime   *time.Time

	BuyIn                        float64
	Rake                         float64
	VenueFee                     float64
	GuaranteeAmount              float64
	HasGuarantee                 bool
	RakeRevenue                  float64
	PrizepoolPlayerContributions float64
	PrizepoolAddedValue          float64
	PrizepoolSurplus             *float64
	GuaranteeOverlayCost         float64
	GameProfit                   float64

	TotalUniquePlayers  int
	TotalInitialEntries int
	TotalEntries        int
	TotalRebuys         int
	TotalAddons         int
	TotalPrizesPaid     float64
	HasCompleteResults  bool

	IsSeries          bool
	IsSatellite       bool
	IsRegular         bool
	SeriesName        string
	ConsolidationType ConsolidationType
	ParentGameID      *string

	VenueID                   string
	VenueAssignmentStatus     AssignmentStatus
	VenueAssignmentConfidence float64

	TournamentSeriesID         *string
	SeriesAssignmentStatus     AssignmentStatus
	SeriesAssignmentConfidence float64

	RecurringGameID                   *string
	RecurringGameAssignmentStatus     AssignmentStatus
	RecurringGameAssignmentConfidence float64
	WasScheduledInstance              bool
	InstanceNumber                    *int
	IsReplacementInstance             bool
	ReplacementReason                 string
	DeviationNotes                    string

	Keys QueryKeys

	ContentHash   string
	DataChangedAt *time.Time

	Version       int64
	LastChangedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (g Game) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("game id is required")
	}
	if g.EntityID == "" {
		return fmt.Errorf("game entity id is required")
	}
	if g.Name == "" {
		return fmt.Errorf("game name is required")
	}
	if g.GameStartDateTime.IsZero() {
		return fmt.Errorf("game start is required")
	}
	return nil
}

// Payload is the scraped shape of a game before resolution and enrichment.
type Payload struct {
	TournamentID        int64             `json:"tournamentId"`
	SourceURL           string            `json:"sourceUrl"`
	Name                string            `json:"name" validate:"required"`
	GameType            Type              `json:"gameType" validate:"required,oneof=TOURNAMENT CASH"`
	GameVariant         Variant           `json:"gameVariant"`
	GameStatus          Status            `json:"gameStatus" validate:"required"`
	GameStartDateTime   time.Time         `json:"gameStartDateTime" validate:"required"`
	GameEndDateTime     *time.Time        `json:"gameEndDateTime,omitempty"`
	BuyIn               float64           `json:"buyIn" validate:"gte=0"`
	Rake                float64           `json:"rake" validate:"gte=0"`
	VenueFee            *float64          `json:"venueFee,omitempty"`
	GuaranteeAmount     *float64          `json:"guaranteeAmount,omitempty"`
	TotalUniquePlayers  int               `json:"totalUniquePlayers" validate:"gte=0"`
	TotalInitialEntries *int              `json:"totalInitialEntries,omitempty"`
	TotalEntries        int               `json:"totalEntries" validate:"gte=0"`
	TotalRebuys         *int              `json:"totalRebuys,omitempty"`
	TotalAddons         int               `json:"totalAddons" validate:"gte=0"`
	TotalPrizesPaid     float64           `json:"totalPrizesPaid"`
	IsSeries            bool              `json:"isSeries"`
	IsSatellite         bool              `json:"isSatellite"`
	IsRegular           bool              `json:"isRegular"`
	SeriesName          string            `json:"seriesName,omitempty"`
	ConsolidationType   ConsolidationType `json:"consolidationType,omitempty"`
	ParentGameID        *string           `json:"parentGameId,omitempty"`
}

// RecurringAssignment is the slice of a game rewritten by recurring re-resolution.
type RecurringAssignment struct {
	RecurringGameID      *string
	Status               AssignmentStatus
	Confidence           float64
	WasScheduledInstance bool
	InstanceNumber       *int
}

func (g *Game) ApplyRecurring(a RecurringAssignment) {
	g.RecurringGameID = a.RecurringGameID
	g.RecurringGameAssignmentStatus = a.Status
	g.RecurringGameAssignmentConfidence = NormalizeConfidence(a.Status, a.Confidence)
	g.WasScheduledInstance = a.WasScheduledInstance
	g.InstanceNumber = a.InstanceNumber
}
