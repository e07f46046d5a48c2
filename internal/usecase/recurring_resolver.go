package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/naming"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const sessionModeMismatchScore = -100

// RecurringThresholds tune template matching; zero values take the defaults.
type RecurringThresholds struct {
	High                int     `json:"high"`
	Medium              int     `json:"medium"`
	CrossDay            int     `json:"crossDay"`
	DuplicateSimilarity float64 `json:"duplicateSimilarity"`
}

func DefaultRecurringThresholds() RecurringThresholds {
	return RecurringThresholds{High: 75, Medium: 50, CrossDay: 60, DuplicateSimilarity: 0.85}
}

func (t RecurringThresholds) WithDefaults() RecurringThresholds {
	d := DefaultRecurringThresholds()
	if t.High <= 0 {
		t.High = d.High
	}
	if t.Medium <= 0 {
		t.Medium = d.Medium
	}
	if t.CrossDay <= 0 {
		t.CrossDay = d.CrossDay
	}
	if t.DuplicateSimilarity <= 0 {
		t.DuplicateSimilarity = d.DuplicateSimilarity
	}
	return t
}

type RecurringAction string

const (
	RecurringReassign        RecurringAction = "REASSIGN"
	RecurringConfirm         RecurringAction = "CONFIRM"
	RecurringSuggestReassign RecurringAction = "SUGGEST_REASSIGN"
	RecurringSuggestCrossDay RecurringAction = "SUGGEST_CROSS_DAY"
	RecurringSuggestUnassign RecurringAction = "SUGGEST_UNASSIGN"
	RecurringNoChange        RecurringAction = "NO_CHANGE"
)

// Mutates reports whether apply mode writes the decision.
func (a RecurringAction) Mutates() bool {
	return a == RecurringReassign || a == RecurringConfirm
}

type RecurringMatch struct {
	RecurringGameID string `json:"recurringGameId"`
	Name            string `json:"name"`
	DayOfWeek       string `json:"dayOfWeek"`
	Score           int    `json:"score"`
	Occurrences     int    `json:"occurrences"`
}

type RecurringDecision struct {
	GameID     string          `json:"gameId"`
	GameName   string          `json:"gameName"`
	Action     RecurringAction `json:"action"`
	CurrentID  *string         `json:"currentRecurringGameId,omitempty"`
	Best       *RecurringMatch `json:"bestMatch,omitempty"`
	CrossDay   *RecurringMatch `json:"crossDayMatch,omitempty"`
	Confidence float64         `json:"confidence"`
}

// ScoreRecurringMatch rates how well g fits tmpl. Session mode mismatch is disqualifying.
func ScoreRecurringMatch(g game.Game, tmpl recurring.RecurringGame) int {
	if g.GameType != "" && tmpl.GameType != "" && g.GameType != tmpl.GameType {
		return sessionModeMismatchScore
	}
	return nameScore(g.Name, tmpl.Name) +
		variantScore(g.GameVariant, tmpl.GameVariant) +
		buyInScore(g.BuyIn, tmpl.TypicalBuyIn) +
		timeScore(g, tmpl)
}

func nameScore(gameName, templateName string) int {
	a, b := naming.CleanGameName(gameName), naming.CleanGameName(templateName)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 60
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 50
	}
	return int(math.Round(naming.Dice(a, b) * 60))
}

func variantScore(a, b game.Variant) int {
	if a != "" && a == b {
		return 15
	}
	return 0
}

func buyInScore(buyIn, typical float64) int {
	if typical <= 0 {
		if buyIn <= 0 {
			return 25
		}
		return 0
	}
	diff := math.Abs(buyIn-typical) / typical
	switch {
	case diff == 0:
		return 25
	case diff <= 0.10:
		return 20
	case diff <= 0.25:
		return 10
	case diff > 0.50:
		return -10
	}
	return 0
}

func timeScore(g game.Game, tmpl recurring.RecurringGame) int {
	typical, ok := tmpl.StartMinutes()
	if !ok || g.GameStartDateTime.IsZero() {
		return 0
	}
	start := g.GameStartDateTime.UTC()
	diff := abs(start.Hour()*60 + start.Minute() - typical)
	diff = min(diff, 1440-diff)
	switch {
	case diff == 0:
		return 15
	case diff <= 15:
		return 12
	case diff <= 30:
		return 8
	case diff > 60:
		return -5
	}
	return 0
}

func gameWeekday(g game.Game) string {
	if g.GameStartDateTime.IsZero() {
		return ""
	}
	return strings.ToUpper(g.GameStartDateTime.UTC().Weekday().String())
}

// DecideRecurring picks the best active template for g and classifies the outcome.
func DecideRecurring(g game.Game, templates []recurring.RecurringGame, th RecurringThresholds) RecurringDecision {
	th = th.WithDefaults()
	decision := RecurringDecision{
		GameID:    g.ID,
		GameName:  g.Name,
		CurrentID: g.RecurringGameID,
		Action:    RecurringNoChange,
	}

	day := gameWeekday(g)
	var best, crossDay *RecurringMatch
	for _, tmpl := range sortedTemplates(templates) {
		if !tmpl.IsActive || tmpl.MergedInto != nil {
			continue
		}
		match := &RecurringMatch{
			RecurringGameID: tmpl.ID,
			Name:            tmpl.Name,
			DayOfWeek:       tmpl.DayOfWeek,
			Score:           ScoreRecurringMatch(g, tmpl),
			Occurrences:     tmpl.TotalOccurrences,
		}
		if strings.EqualFold(tmpl.DayOfWeek, day) {
			if best == nil || match.Score > best.Score {
				best = match
			}
			continue
		}
		if crossDay == nil || match.Score > crossDay.Score {
			crossDay = match
		}
	}
	decision.Best = best
	decision.CrossDay = crossDay

	switch {
	case best != nil && best.Score >= th.High:
		decision.Action = RecurringReassign
		if g.RecurringGameID != nil && *g.RecurringGameID == best.RecurringGameID {
			decision.Action = RecurringConfirm
		}
		decision.Confidence = scoreConfidence(best.Score)
	case best != nil && best.Score >= th.Medium:
		decision.Action = RecurringSuggestReassign
		decision.Confidence = scoreConfidence(best.Score)
	case crossDay != nil && crossDay.Score >= th.CrossDay:
		decision.Action = RecurringSuggestCrossDay
		decision.Confidence = scoreConfidence(crossDay.Score)
	case g.RecurringGameID != nil:
		decision.Action = RecurringSuggestUnassign
	}
	return decision
}

func sortedTemplates(templates []recurring.RecurringGame) []recurring.RecurringGame {
	out := append([]recurring.RecurringGame(nil), templates...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func scoreConfidence(score int) float64 {
	return math.Max(0, math.Min(1, float64(score)/100))
}

// RecurringResolution is the save-time template assignment for a game.
type RecurringResolution struct {
	RecurringGameID *string               `json:"recurringGameId,omitempty"`
	Name            string                `json:"name,omitempty"`
	Status          game.AssignmentStatus `json:"status"`
	Confidence      float64               `json:"confidence"`
	Action          RecurringAction       `json:"action"`
	// InstanceNumber is the occurrence this game would be if newly recorded.
	InstanceNumber int `json:"instanceNumber,omitempty"`
}

type RecurringResolver struct {
	recurringRepo recurring.Repository
	thresholds    RecurringThresholds
	logger        *logging.Logger
}

func NewRecurringResolver(recurringRepo recurring.Repository, thresholds RecurringThresholds, logger *logging.Logger) *RecurringResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &RecurringResolver{
		recurringRepo: recurringRepo,
		thresholds:    thresholds.WithDefaults(),
		logger:        logger,
	}
}

func (r *RecurringResolver) Templates(ctx context.Context, venueID string) ([]recurring.RecurringGame, error) {
	templates, err := r.recurringRepo.ListByVenue(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("list recurring games venue=%s: %w", venueID, err)
	}
	return templates, nil
}

// Resolve assigns g to a template only on a high-confidence same-day match.
func (r *RecurringResolver) Resolve(ctx context.Context, g game.Game) (RecurringResolution, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RecurringResolver.Resolve")
	defer span.End()

	if g.IsSeries || g.GameType == game.TypeCash {
		return RecurringResolution{Status: game.AssignmentNotApplicable, Action: RecurringNoChange}, nil
	}
	if g.VenueID == "" || g.VenueID == game.UnassignedVenueID {
		return RecurringResolution{Status: game.AssignmentPending, Action: RecurringNoChange}, nil
	}

	templates, err := r.Templates(ctx, g.VenueID)
	if err != nil {
		return RecurringResolution{}, err
	}

	decision := DecideRecurring(g, templates, r.thresholds)
	switch decision.Action {
	case RecurringReassign, RecurringConfirm:
		templateID := decision.Best.RecurringGameID
		return RecurringResolution{
			RecurringGameID: &templateID,
			Name:            decision.Best.Name,
			Status:          game.AssignmentAutoAssigned,
			Confidence:      decision.Confidence,
			Action:          decision.Action,
			InstanceNumber:  decision.Best.Occurrences + 1,
		}, nil
	default:
		r.logger.DebugContext(ctx, "no recurring template above threshold",
			"venue_id", g.VenueID,
			"action", string(decision.Action),
		)
		return RecurringResolution{Status: game.AssignmentPending, Action: decision.Action}, nil
	}
}
