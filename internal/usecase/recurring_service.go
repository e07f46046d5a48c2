package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const defaultBootstrapWorkers = 4

type BootstrapInput struct {
	EntityID string        `json:"entityId"`
	VenueID  string        `json:"venueId"`
	Preview  bool          `json:"preview"`
	Config   ClusterConfig `json:"config"`
}

type BootstrapTemplate struct {
	RecurringGameID string  `json:"recurringGameId,omitempty"`
	Name            string  `json:"name"`
	DayOfWeek       string  `json:"dayOfWeek"`
	StartTime       string  `json:"startTime,omitempty"`
	BuyIn           float64 `json:"buyIn"`
	Frequency       string  `json:"frequency"`
	GameCount       int     `json:"gameCount"`
	Confidence      float64 `json:"confidence"`
	Created         bool    `json:"created"`
}

type VenueBootstrap struct {
	VenueID         string              `json:"venueId"`
	GamesConsidered int                 `json:"gamesConsidered"`
	GamesAssigned   int                 `json:"gamesAssigned"`
	Templates       []BootstrapTemplate `json:"templates"`
	Error           string              `json:"error,omitempty"`
}

type BootstrapResult struct {
	Preview        bool             `json:"preview"`
	Venues         []VenueBootstrap `json:"venues"`
	TemplatesFound int              `json:"templatesFound"`
	GamesAssigned  int              `json:"gamesAssigned"`
}

// RecurringService synthesizes recurring templates from venue history.
type RecurringService struct {
	games         game.Repository
	recurringRepo recurring.Repository
	venues        venue.Repository
	idGen         id.Generator
	workers       int
	logger        *logging.Logger
	now           func() time.Time
}

func NewRecurringService(games game.Repository, recurringRepo recurring.Repository, venues venue.Repository, idGen id.Generator, workers int, logger *logging.Logger) *RecurringService {
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = defaultBootstrapWorkers
	}
	return &RecurringService{
		games:         games,
		recurringRepo: recurringRepo,
		venues:        venues,
		idGen:         idGen,
		workers:       workers,
		logger:        logger,
		now:           time.Now,
	}
}

// Bootstrap clusters one venue, or every venue of an entity on a worker pool.
func (s *RecurringService) Bootstrap(ctx context.Context, in BootstrapInput) (BootstrapResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RecurringService.Bootstrap")
	defer span.End()

	venueIDs, err := s.targetVenues(ctx, in)
	if err != nil {
		return BootstrapResult{}, err
	}
	cfg := in.Config.WithDefaults()
	result := BootstrapResult{Preview: in.Preview, Venues: make([]VenueBootstrap, 0, len(venueIDs))}
	if len(venueIDs) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(min(s.workers, len(venueIDs)))
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		workers sync.WaitGroup
	)
	for _, venueID := range venueIDs {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			row, err := s.bootstrapVenue(ctx, venueID, cfg, in.Preview)
			if err != nil {
				s.logger.WarnContext(ctx, "bootstrap recurring games failed", "venue_id", venueID, "error", err)
				row = VenueBootstrap{VenueID: venueID, Error: err.Error()}
			}
			mu.Lock()
			result.Venues = append(result.Venues, row)
			mu.Unlock()
		}); err != nil {
			workers.Done()
			return BootstrapResult{}, fmt.Errorf("submit venue to worker pool: %w", err)
		}
	}
	workers.Wait()

	sort.Slice(result.Venues, func(i, j int) bool { return result.Venues[i].VenueID < result.Venues[j].VenueID })
	for _, v := range result.Venues {
		result.TemplatesFound += len(v.Templates)
		result.GamesAssigned += v.GamesAssigned
	}
	return result, nil
}

func (s *RecurringService) targetVenues(ctx context.Context, in BootstrapInput) ([]string, error) {
	if venueID := strings.TrimSpace(in.VenueID); venueID != "" {
		return []string{venueID}, nil
	}
	entityID := strings.TrimSpace(in.EntityID)
	if entityID == "" {
		return nil, fmt.Errorf("%w: entityId or venueId is required", ErrInvalidInput)
	}
	venues, err := s.venues.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	ids := make([]string, 0, len(venues))
	for _, v := range venues {
		if v.ID != game.UnassignedVenueID {
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

func (s *RecurringService) bootstrapVenue(ctx context.Context, venueID string, cfg ClusterConfig, preview bool) (VenueBootstrap, error) {
	games, err := s.games.ListByVenue(ctx, venueID)
	if err != nil {
		return VenueBootstrap{}, fmt.Errorf("list venue games: %w", err)
	}
	existing, err := s.recurringRepo.ListByVenue(ctx, venueID)
	if err != nil {
		return VenueBootstrap{}, fmt.Errorf("list venue templates: %w", err)
	}

	byID := make(map[string]game.Game, len(games))
	entityID := ""
	for _, g := range games {
		byID[g.ID] = g
		if entityID == "" {
			entityID = g.EntityID
		}
	}

	row := VenueBootstrap{VenueID: venueID, GamesConsidered: len(games)}
	for _, proposal := range ClusterGames(games, cfg) {
		tmpl := proposal.Template
		tmpl.VenueID = venueID
		tmpl.EntityID = entityID

		summary := BootstrapTemplate{
			Name:       tmpl.Name,
			DayOfWeek:  tmpl.DayOfWeek,
			StartTime:  tmpl.TypicalStartTime,
			BuyIn:      tmpl.TypicalBuyIn,
			Frequency:  string(tmpl.Frequency),
			GameCount:  len(proposal.GameIDs),
			Confidence: tmpl.Confidence,
		}
		if match, ok := findTemplate(existing, tmpl.Name, tmpl.DayOfWeek); ok {
			summary.RecurringGameID = match.ID
			tmpl.ID = match.ID
		} else if !preview {
			newID, err := s.idGen.NewID()
			if err != nil {
				return VenueBootstrap{}, fmt.Errorf("generate recurring game id: %w", err)
			}
			now := s.now().UTC()
			tmpl.ID = newID
			tmpl.CreatedAt = now
			tmpl.UpdatedAt = now
			if err := s.recurringRepo.Create(ctx, tmpl); err != nil {
				return VenueBootstrap{}, fmt.Errorf("create recurring game: %w", err)
			}
			existing = append(existing, tmpl)
			summary.RecurringGameID = newID
			summary.Created = true
		}

		if preview {
			row.Templates = append(row.Templates, summary)
			continue
		}
		assigned, err := s.assignCluster(ctx, tmpl, proposal.GameIDs, byID)
		if err != nil {
			return VenueBootstrap{}, err
		}
		row.GamesAssigned += assigned
		row.Templates = append(row.Templates, summary)
	}
	return row, nil
}

func findTemplate(templates []recurring.RecurringGame, name, day string) (recurring.RecurringGame, bool) {
	for _, t := range templates {
		if t.MergedInto == nil && strings.EqualFold(t.Name, name) && strings.EqualFold(t.DayOfWeek, day) {
			return t, true
		}
	}
	return recurring.RecurringGame{}, false
}

// assignCluster numbers instances by start time and leaves manual assignments alone.
func (s *RecurringService) assignCluster(ctx context.Context, tmpl recurring.RecurringGame, gameIDs []string, byID map[string]game.Game) (int, error) {
	members := make([]game.Game, 0, len(gameIDs))
	for _, id := range gameIDs {
		if g, ok := byID[id]; ok {
			members = append(members, g)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].GameStartDateTime.Before(members[j].GameStartDateTime)
	})

	assigned := 0
	templateID := tmpl.ID
	for i, g := range members {
		if g.RecurringGameAssignmentStatus == game.AssignmentManual {
			continue
		}
		instance := i + 1
		err := s.games.UpdateRecurringAssignment(ctx, g.ID, game.RecurringAssignment{
			RecurringGameID:      &templateID,
			Status:               game.AssignmentAutoAssigned,
			Confidence:           tmpl.Confidence,
			WasScheduledInstance: true,
			InstanceNumber:       &instance,
		})
		if err != nil {
			return assigned, fmt.Errorf("assign game=%s to recurring game=%s: %w", g.ID, templateID, err)
		}
		assigned++
	}

	count, err := s.games.CountByRecurringGame(ctx, templateID)
	if err != nil {
		return assigned, fmt.Errorf("count recurring games: %w", err)
	}
	current, ok, err := s.recurringRepo.GetByID(ctx, templateID)
	if err != nil || !ok {
		return assigned, err
	}
	current.TotalOccurrences = count
	current.FirstSeenDate = earliest(current.FirstSeenDate, tmpl.FirstSeenDate)
	current.LastSeenDate = latest(current.LastSeenDate, tmpl.LastSeenDate)
	current.UpdatedAt = s.now().UTC()
	if err := s.recurringRepo.Update(ctx, current); err != nil {
		return assigned, fmt.Errorf("update recurring game: %w", err)
	}
	return assigned, nil
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil || (b != nil && b.Before(*a)) {
		return b
	}
	return a
}

func latest(a, b *time.Time) *time.Time {
	if a == nil || (b != nil && b.After(*a)) {
		return b
	}
	return a
}
