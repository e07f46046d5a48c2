package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/naming"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const maxAdminDetails = 100

type ReResolveGameInput struct {
	GameID     string              `json:"gameId"`
	Preview    bool                `json:"preview"`
	Force      bool                `json:"force"`
	Thresholds RecurringThresholds `json:"thresholds"`
}

type ReResolveGameResult struct {
	Decision RecurringDecision `json:"decision"`
	Applied  bool              `json:"applied"`
	Message  string            `json:"message,omitempty"`
}

type ReResolveVenueInput struct {
	VenueID    string              `json:"venueId"`
	Preview    bool                `json:"preview"`
	Force      bool                `json:"force"`
	Thresholds RecurringThresholds `json:"thresholds"`
}

type ReResolveVenueResult struct {
	VenueID        string                  `json:"venueId"`
	Preview        bool                    `json:"preview"`
	GamesProcessed int                     `json:"gamesProcessed"`
	Applied        int                     `json:"applied"`
	Actions        map[RecurringAction]int `json:"actions"`
	Details        []RecurringDecision     `json:"details"`
	Truncated      bool                    `json:"truncated"`
}

type FindDuplicatesInput struct {
	VenueID             string  `json:"venueId"`
	EntityID            string  `json:"entityId"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
}

type DuplicateGroup struct {
	CanonicalID   string   `json:"canonicalId"`
	CanonicalName string   `json:"canonicalName"`
	DayOfWeek     string   `json:"dayOfWeek"`
	DuplicateIDs  []string `json:"duplicateIds"`
	Similarity    float64  `json:"similarity"`
}

type FindDuplicatesResult struct {
	Groups    []DuplicateGroup `json:"groups"`
	Truncated bool             `json:"truncated"`
}

type MergeDuplicatesInput struct {
	CanonicalID  string   `json:"canonicalId"`
	DuplicateIDs []string `json:"duplicateIds"`
	Preview      bool     `json:"preview"`
}

type MergeDetail struct {
	RecurringGameID string `json:"recurringGameId"`
	GamesMoved      int    `json:"gamesMoved"`
	AlreadyMerged   bool   `json:"alreadyMerged"`
	SkippedReason   string `json:"skippedReason,omitempty"`
}

type MergeDuplicatesResult struct {
	CanonicalID     string        `json:"canonicalId"`
	Preview         bool          `json:"preview"`
	GamesReassigned int           `json:"gamesReassigned"`
	Details         []MergeDetail `json:"details"`
}

type CleanupOrphansInput struct {
	VenueID  string `json:"venueId"`
	EntityID string `json:"entityId"`
	Preview  bool   `json:"preview"`
}

type OrphanTemplate struct {
	RecurringGameID string `json:"recurringGameId"`
	Name            string `json:"name"`
	DayOfWeek       string `json:"dayOfWeek"`
}

type CleanupOrphansResult struct {
	Preview bool             `json:"preview"`
	Orphans []OrphanTemplate `json:"orphans"`
	Deleted int              `json:"deleted"`
}

type RecurringStatsInput struct {
	VenueID  string `json:"venueId"`
	EntityID string `json:"entityId"`
}

type RecurringStats struct {
	TotalTemplates    int              `json:"totalTemplates"`
	Active            int              `json:"active"`
	Inactive          int              `json:"inactive"`
	Merged            int              `json:"merged"`
	Orphans           int              `json:"orphans"`
	AssignedGames     int              `json:"assignedGames"`
	AverageConfidence float64          `json:"averageConfidence"`
	ByDayOfWeek       map[string]int   `json:"byDayOfWeek"`
	ByFrequency       map[string]int   `json:"byFrequency"`
	TopByOccurrences  []RecurringMatch `json:"topByOccurrences"`
}

// AdminService exposes preview-or-apply maintenance over recurring assignments.
type AdminService struct {
	games         game.Repository
	recurringRepo recurring.Repository
	thresholds    RecurringThresholds
	logger        *logging.Logger
	now           func() time.Time
}

func NewAdminService(games game.Repository, recurringRepo recurring.Repository, thresholds RecurringThresholds, logger *logging.Logger) *AdminService {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminService{
		games:         games,
		recurringRepo: recurringRepo,
		thresholds:    thresholds.WithDefaults(),
		logger:        logger,
		now:           time.Now,
	}
}

func (s *AdminService) thresholdsFor(override RecurringThresholds) RecurringThresholds {
	if override == (RecurringThresholds{}) {
		return s.thresholds
	}
	return override.WithDefaults()
}

func (s *AdminService) ReResolveGame(ctx context.Context, in ReResolveGameInput) (ReResolveGameResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.ReResolveGame")
	defer span.End()

	gameID := strings.TrimSpace(in.GameID)
	if gameID == "" {
		return ReResolveGameResult{}, fmt.Errorf("%w: gameId is required", ErrInvalidInput)
	}
	g, ok, err := s.games.FindByID(ctx, gameID)
	if err != nil {
		return ReResolveGameResult{}, fmt.Errorf("get game: %w", err)
	}
	if !ok {
		return ReResolveGameResult{}, fmt.Errorf("%w: game %s", ErrNotFound, gameID)
	}
	templates, err := s.recurringRepo.ListByVenue(ctx, g.VenueID)
	if err != nil {
		return ReResolveGameResult{}, fmt.Errorf("list recurring games: %w", err)
	}

	decision := DecideRecurring(g, templates, s.thresholdsFor(in.Thresholds))
	result := ReResolveGameResult{Decision: decision}
	applied, message, err := s.applyDecision(ctx, g, decision, in.Preview, in.Force)
	if err != nil {
		recordSpanError(span, err)
		return ReResolveGameResult{}, err
	}
	result.Applied = applied
	result.Message = message
	return result, nil
}

// applyDecision writes REASSIGN and CONFIRM outcomes; everything else is advisory.
func (s *AdminService) applyDecision(ctx context.Context, g game.Game, d RecurringDecision, preview, force bool) (bool, string, error) {
	switch {
	case preview:
		return false, "preview", nil
	case !d.Action.Mutates():
		return false, "no change applied for " + string(d.Action), nil
	case g.RecurringGameAssignmentStatus == game.AssignmentManual && !force:
		return false, "manual assignment kept", nil
	}

	templateID := d.Best.RecurringGameID
	assignment := game.RecurringAssignment{
		RecurringGameID:      &templateID,
		Status:               game.AssignmentAutoAssigned,
		Confidence:           d.Confidence,
		WasScheduledInstance: true,
		InstanceNumber:       g.InstanceNumber,
	}
	if d.Action == RecurringReassign {
		instance := d.Best.Occurrences + 1
		assignment.InstanceNumber = &instance
	}
	if err := s.games.UpdateRecurringAssignment(ctx, g.ID, assignment); err != nil {
		return false, "", fmt.Errorf("update recurring assignment game=%s: %w", g.ID, err)
	}
	if d.Action == RecurringReassign {
		if err := s.recurringRepo.RecordOccurrence(ctx, templateID, g.GameStartDateTime); err != nil {
			s.logger.WarnContext(ctx, "record recurring occurrence failed", "recurring_game_id", templateID, "error", err)
		}
	}
	return true, string(d.Action), nil
}

// ReResolveVenueGames loads templates once and scores every game at the venue.
func (s *AdminService) ReResolveVenueGames(ctx context.Context, in ReResolveVenueInput) (ReResolveVenueResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.ReResolveVenueGames")
	defer span.End()

	venueID := strings.TrimSpace(in.VenueID)
	if venueID == "" {
		return ReResolveVenueResult{}, fmt.Errorf("%w: venueId is required", ErrInvalidInput)
	}
	templates, err := s.recurringRepo.ListByVenue(ctx, venueID)
	if err != nil {
		return ReResolveVenueResult{}, fmt.Errorf("list recurring games: %w", err)
	}
	games, err := s.games.ListByVenue(ctx, venueID)
	if err != nil {
		return ReResolveVenueResult{}, fmt.Errorf("list venue games: %w", err)
	}

	th := s.thresholdsFor(in.Thresholds)
	result := ReResolveVenueResult{
		VenueID: venueID,
		Preview: in.Preview,
		Actions: make(map[RecurringAction]int),
		Details: make([]RecurringDecision, 0, min(len(games), maxAdminDetails)),
	}
	for _, g := range games {
		if g.IsSeries || g.GameType == game.TypeCash {
			continue
		}
		result.GamesProcessed++
		decision := DecideRecurring(g, templates, th)
		result.Actions[decision.Action]++

		applied, _, err := s.applyDecision(ctx, g, decision, in.Preview, in.Force)
		if err != nil {
			s.logger.WarnContext(ctx, "apply recurring decision failed", "game_id", g.ID, "error", err)
		}
		if applied {
			result.Applied++
			// later games see the occurrence just recorded
			for i := range templates {
				if templates[i].ID == decision.Best.RecurringGameID && decision.Action == RecurringReassign {
					templates[i].TotalOccurrences++
				}
			}
		}
		if len(result.Details) < maxAdminDetails {
			result.Details = append(result.Details, decision)
		} else {
			result.Truncated = true
		}
	}
	return result, nil
}

func (s *AdminService) listTemplates(ctx context.Context, venueID, entityID string) ([]recurring.RecurringGame, error) {
	venueID, entityID = strings.TrimSpace(venueID), strings.TrimSpace(entityID)
	switch {
	case venueID != "":
		items, err := s.recurringRepo.ListByVenue(ctx, venueID)
		if err != nil {
			return nil, fmt.Errorf("list recurring games venue=%s: %w", venueID, err)
		}
		return items, nil
	case entityID != "":
		items, err := s.recurringRepo.ListByEntity(ctx, entityID)
		if err != nil {
			return nil, fmt.Errorf("list recurring games entity=%s: %w", entityID, err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: venueId or entityId is required", ErrInvalidInput)
}

// FindDuplicates pairs active templates on the same venue, day and type whose cleaned names are near-identical.
func (s *AdminService) FindDuplicates(ctx context.Context, in FindDuplicatesInput) (FindDuplicatesResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.FindDuplicates")
	defer span.End()

	templates, err := s.listTemplates(ctx, in.VenueID, in.EntityID)
	if err != nil {
		return FindDuplicatesResult{}, err
	}
	threshold := in.SimilarityThreshold
	if threshold <= 0 {
		threshold = s.thresholds.DuplicateSimilarity
	}
	return FindDuplicatesResult{Groups: duplicateGroups(templates, threshold)}, nil
}

func duplicateGroups(templates []recurring.RecurringGame, threshold float64) []DuplicateGroup {
	active := make([]recurring.RecurringGame, 0, len(templates))
	for _, t := range sortedTemplates(templates) {
		if t.IsActive && t.MergedInto == nil {
			active = append(active, t)
		}
	}

	uf := newUnionFind(len(active))
	best := make(map[[2]int]float64)
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if a.VenueID != b.VenueID || !strings.EqualFold(a.DayOfWeek, b.DayOfWeek) || a.GameType != b.GameType {
				continue
			}
			sim := naming.Dice(naming.CleanGameName(a.Name), naming.CleanGameName(b.Name))
			if sim >= threshold {
				uf.union(i, j)
				best[[2]int{i, j}] = sim
			}
		}
	}

	members := make(map[int][]int)
	for i := range active {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	groups := make([]DuplicateGroup, 0)
	for _, idx := range members {
		if len(idx) < 2 {
			continue
		}
		canonical := idx[0]
		for _, i := range idx[1:] {
			if preferCanonical(active[i], active[canonical]) {
				canonical = i
			}
		}
		group := DuplicateGroup{
			CanonicalID:   active[canonical].ID,
			CanonicalName: active[canonical].Name,
			DayOfWeek:     active[canonical].DayOfWeek,
			Similarity:    1,
		}
		for _, i := range idx {
			if i != canonical {
				group.DuplicateIDs = append(group.DuplicateIDs, active[i].ID)
			}
		}
		for pair, sim := range best {
			if uf.find(pair[0]) == uf.find(canonical) && sim < group.Similarity {
				group.Similarity = sim
			}
		}
		sort.Strings(group.DuplicateIDs)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CanonicalID < groups[j].CanonicalID })
	return groups
}

// preferCanonical keeps the template with more history, then the older one.
func preferCanonical(a, b recurring.RecurringGame) bool {
	if a.TotalOccurrences != b.TotalOccurrences {
		return a.TotalOccurrences > b.TotalOccurrences
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// MergeDuplicates moves every game onto the canonical template and tombstones the rest.
func (s *AdminService) MergeDuplicates(ctx context.Context, in MergeDuplicatesInput) (MergeDuplicatesResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.MergeDuplicates")
	defer span.End()

	canonicalID := strings.TrimSpace(in.CanonicalID)
	if canonicalID == "" || len(in.DuplicateIDs) == 0 {
		return MergeDuplicatesResult{}, fmt.Errorf("%w: canonicalId and duplicateIds are required", ErrInvalidInput)
	}
	canonical, ok, err := s.recurringRepo.GetByID(ctx, canonicalID)
	if err != nil {
		return MergeDuplicatesResult{}, fmt.Errorf("get canonical recurring game: %w", err)
	}
	if !ok {
		return MergeDuplicatesResult{}, fmt.Errorf("%w: recurring game %s", ErrNotFound, canonicalID)
	}
	if canonical.MergedInto != nil {
		return MergeDuplicatesResult{}, fmt.Errorf("%w: canonical %s is itself merged into %s", ErrConflict, canonicalID, *canonical.MergedInto)
	}

	// Load and check every duplicate before touching anything.
	dups := make([]recurring.RecurringGame, 0, len(in.DuplicateIDs))
	for _, dupID := range in.DuplicateIDs {
		dupID = strings.TrimSpace(dupID)
		if dupID == "" || dupID == canonicalID {
			continue
		}
		dup, ok, err := s.recurringRepo.GetByID(ctx, dupID)
		if err != nil {
			return MergeDuplicatesResult{}, fmt.Errorf("get duplicate recurring game: %w", err)
		}
		if !ok {
			return MergeDuplicatesResult{}, fmt.Errorf("%w: recurring game %s", ErrNotFound, dupID)
		}
		if dup.EntityID != canonical.EntityID || dup.VenueID != canonical.VenueID {
			return MergeDuplicatesResult{}, fmt.Errorf("%w: recurring game %s belongs to venue %s, canonical %s to venue %s",
				ErrInvalidInput, dupID, dup.VenueID, canonicalID, canonical.VenueID)
		}
		dups = append(dups, dup)
	}

	result := MergeDuplicatesResult{CanonicalID: canonicalID, Preview: in.Preview}
	for _, dup := range dups {
		dupID := dup.ID
		detail := MergeDetail{RecurringGameID: dupID}
		if dup.MergedInto != nil {
			if *dup.MergedInto != canonicalID {
				detail.SkippedReason = "already merged into " + *dup.MergedInto
				if len(result.Details) < maxAdminDetails {
					result.Details = append(result.Details, detail)
				}
				continue
			}
			detail.AlreadyMerged = true
		}

		if in.Preview {
			moved, err := s.games.CountByRecurringGame(ctx, dupID)
			if err != nil {
				return MergeDuplicatesResult{}, fmt.Errorf("count games: %w", err)
			}
			detail.GamesMoved = moved
		} else {
			moved, err := s.games.ReassignRecurringGame(ctx, dupID, canonicalID)
			if err != nil {
				return MergeDuplicatesResult{}, fmt.Errorf("reassign games %s->%s: %w", dupID, canonicalID, err)
			}
			detail.GamesMoved = moved
			if !detail.AlreadyMerged {
				dup.IsActive = false
				dup.MergedInto = &canonicalID
				dup.UpdatedAt = s.now().UTC()
				if err := s.recurringRepo.Update(ctx, dup); err != nil {
					return MergeDuplicatesResult{}, fmt.Errorf("mark recurring game merged: %w", err)
				}
				canonical.FirstSeenDate = earliest(canonical.FirstSeenDate, dup.FirstSeenDate)
				canonical.LastSeenDate = latest(canonical.LastSeenDate, dup.LastSeenDate)
			}
		}
		result.GamesReassigned += detail.GamesMoved
		if len(result.Details) < maxAdminDetails {
			result.Details = append(result.Details, detail)
		}
	}

	if !in.Preview {
		count, err := s.games.CountByRecurringGame(ctx, canonicalID)
		if err != nil {
			return MergeDuplicatesResult{}, fmt.Errorf("count canonical games: %w", err)
		}
		canonical.TotalOccurrences = count
		canonical.UpdatedAt = s.now().UTC()
		if err := s.recurringRepo.Update(ctx, canonical); err != nil {
			return MergeDuplicatesResult{}, fmt.Errorf("update canonical recurring game: %w", err)
		}
		s.logger.InfoContext(ctx, "recurring games merged",
			"canonical_id", canonicalID,
			"duplicates", len(in.DuplicateIDs),
			"games_reassigned", result.GamesReassigned,
		)
	}
	return result, nil
}

// CleanupOrphans removes unmerged templates that no game points at.
func (s *AdminService) CleanupOrphans(ctx context.Context, in CleanupOrphansInput) (CleanupOrphansResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.CleanupOrphans")
	defer span.End()

	templates, err := s.listTemplates(ctx, in.VenueID, in.EntityID)
	if err != nil {
		return CleanupOrphansResult{}, err
	}
	result := CleanupOrphansResult{Preview: in.Preview, Orphans: make([]OrphanTemplate, 0)}
	for _, t := range sortedTemplates(templates) {
		if t.MergedInto != nil {
			continue
		}
		count, err := s.games.CountByRecurringGame(ctx, t.ID)
		if err != nil {
			return CleanupOrphansResult{}, fmt.Errorf("count games recurring=%s: %w", t.ID, err)
		}
		if count > 0 {
			continue
		}
		if len(result.Orphans) < maxAdminDetails {
			result.Orphans = append(result.Orphans, OrphanTemplate{RecurringGameID: t.ID, Name: t.Name, DayOfWeek: t.DayOfWeek})
		}
		if in.Preview {
			continue
		}
		if err := s.recurringRepo.Delete(ctx, t.ID); err != nil {
			return CleanupOrphansResult{}, fmt.Errorf("delete orphan recurring game=%s: %w", t.ID, err)
		}
		result.Deleted++
	}
	return result, nil
}

func (s *AdminService) Stats(ctx context.Context, in RecurringStatsInput) (RecurringStats, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AdminService.Stats")
	defer span.End()

	templates, err := s.listTemplates(ctx, in.VenueID, in.EntityID)
	if err != nil {
		return RecurringStats{}, err
	}
	stats := RecurringStats{
		TotalTemplates: len(templates),
		ByDayOfWeek:    make(map[string]int),
		ByFrequency:    make(map[string]int),
	}
	var confidenceSum float64
	top := make([]RecurringMatch, 0, len(templates))
	for _, t := range templates {
		switch {
		case t.MergedInto != nil:
			stats.Merged++
			continue
		case t.IsActive:
			stats.Active++
		default:
			stats.Inactive++
		}
		count, err := s.games.CountByRecurringGame(ctx, t.ID)
		if err != nil {
			return RecurringStats{}, fmt.Errorf("count games recurring=%s: %w", t.ID, err)
		}
		if count == 0 {
			stats.Orphans++
		}
		stats.AssignedGames += count
		stats.ByDayOfWeek[t.DayOfWeek]++
		stats.ByFrequency[string(t.Frequency)]++
		confidenceSum += t.Confidence
		top = append(top, RecurringMatch{
			RecurringGameID: t.ID,
			Name:            t.Name,
			DayOfWeek:       t.DayOfWeek,
			Occurrences:     count,
		})
	}
	if n := stats.Active + stats.Inactive; n > 0 {
		stats.AverageConfidence = confidenceSum / float64(n)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Occurrences != top[j].Occurrences {
			return top[i].Occurrences > top[j].Occurrences
		}
		return top[i].RecurringGameID < top[j].RecurringGameID
	})
	if len(top) > 10 {
		top = top[:10]
	}
	stats.TopByOccurrences = top
	return stats, nil
}
