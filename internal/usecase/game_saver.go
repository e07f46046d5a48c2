package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/resilience"
)

type SaveAction string

const (
	SaveCreated          SaveAction = "CREATED"
	SaveUpdated          SaveAction = "UPDATED"
	SaveSkipped          SaveAction = "SKIPPED"
	SaveValidationFailed SaveAction = "VALIDATION_FAILED"
	SaveError            SaveAction = "ERROR"
)

type SaveSource struct {
	Type     string `json:"type" validate:"required,oneof=SCRAPE MANUAL API"`
	SourceID string `json:"sourceId" validate:"required"`
	EntityID string `json:"entityId" validate:"required"`
	JobID    string `json:"jobId,omitempty"`
	// ContentHash is the hash of the fetched page, recorded on the attempt audit.
	ContentHash string `json:"contentHash,omitempty"`
}

type SaveOptions struct {
	ExistingGameID       string `json:"existingGameId,omitempty"`
	ForceUpdate          bool   `json:"forceUpdate,omitempty"`
	SkipSeriesAutoCreate bool   `json:"skipSeriesAutoCreate,omitempty"`
	WasEdited            bool   `json:"wasEdited,omitempty"`
}

type SaveGameInput struct {
	Source  SaveSource       `json:"source"`
	Game    game.Payload     `json:"game"`
	Players *game.PlayerList `json:"players,omitempty"`
	Venue   VenueRef         `json:"venue"`
	Series  SeriesRef        `json:"series"`
	Options SaveOptions      `json:"options"`
}

type SaveGameResult struct {
	Success                 bool                 `json:"success"`
	GameID                  string               `json:"gameId,omitempty"`
	Action                  SaveAction           `json:"action"`
	Message                 string               `json:"message,omitempty"`
	FieldsUpdated           []string             `json:"fieldsUpdated"`
	Warnings                []string             `json:"warnings"`
	ContentHash             string               `json:"contentHash,omitempty"`
	VenueAssignment         *VenueResolution     `json:"venueAssignment,omitempty"`
	SeriesAssignment        *SeriesResolution    `json:"seriesAssignment,omitempty"`
	RecurringGameAssignment *RecurringResolution `json:"recurringGameAssignment,omitempty"`
	PlayerProcessingQueued  bool                 `json:"playerProcessingQueued"`
	PlayerBatchesQueued     int                  `json:"playerBatchesQueued"`
}

type GameSaverConfig struct {
	PlayerBatchSize       int
	PlayerEnqueueParallel int
	PlayerEnqueueRetry    resilience.RetryPolicy
	SeriesAutoCreate      bool
}

// attemptRecorder folds a scrape outcome into URL tracking and the attempt audit.
type attemptRecorder interface {
	RecordAttempt(ctx context.Context, in AttemptInput) error
}

// GameSaver is the idempotent upsert pipeline for one scraped game.
type GameSaver struct {
	games         game.Repository
	entries       game.PlayerEntryRepository
	snapshots     game.SnapshotRepository
	seriesRepo    series.Repository
	recurringRepo recurring.Repository
	queue         game.PlayerQueue
	attempts      attemptRecorder
	venues        *VenueResolver
	seriesRes     *SeriesResolver
	recurringRes  *RecurringResolver
	idGen         id.Generator
	validate      *validator.Validate
	cfg           GameSaverConfig
	metrics       *scrapeMetrics
	logger        *logging.Logger
	now           func() time.Time
}

type GameSaverDeps struct {
	Games         game.Repository
	Entries       game.PlayerEntryRepository
	Snapshots     game.SnapshotRepository
	SeriesRepo    series.Repository
	RecurringRepo recurring.Repository
	Queue         game.PlayerQueue
	Attempts      attemptRecorder
	Venues        *VenueResolver
	Series        *SeriesResolver
	Recurring     *RecurringResolver
	IDGen         id.Generator
}

func NewGameSaver(deps GameSaverDeps, cfg GameSaverConfig, logger *logging.Logger) *GameSaver {
	if logger == nil {
		logger = logging.Default()
	}
	if deps.IDGen == nil {
		deps.IDGen = id.NewUUIDGenerator()
	}
	if cfg.PlayerBatchSize <= 0 {
		cfg.PlayerBatchSize = game.DefaultPlayerBatchSize
	}
	if cfg.PlayerEnqueueParallel <= 0 {
		cfg.PlayerEnqueueParallel = 5
	}
	if cfg.PlayerEnqueueRetry.MaxAttempts <= 0 {
		cfg.PlayerEnqueueRetry = resilience.DefaultRetryPolicy()
	}

	return &GameSaver{
		games:         deps.Games,
		entries:       deps.Entries,
		snapshots:     deps.Snapshots,
		seriesRepo:    deps.SeriesRepo,
		recurringRepo: deps.RecurringRepo,
		queue:         deps.Queue,
		attempts:      deps.Attempts,
		venues:        deps.Venues,
		seriesRes:     deps.Series,
		recurringRes:  deps.Recurring,
		idGen:         deps.IDGen,
		validate:      validator.New(),
		cfg:           cfg,
		metrics:       newScrapeMetrics(),
		logger:        logger,
		now:           time.Now,
	}
}

// Save runs validate, resolve, enrich, find, decide, write, post-hooks and the player queue decision.
// The returned result is always populated; err is non-nil when Success is false.
func (s *GameSaver) Save(ctx context.Context, in SaveGameInput) (SaveGameResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameSaver.Save")
	defer span.End()

	result := SaveGameResult{FieldsUpdated: []string{}, Warnings: []string{}}

	if err := s.validate.Struct(in); err != nil {
		result.Action = SaveValidationFailed
		result.Message = err.Error()
		return result, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now().UTC()
	next := gameFromPayload(in)
	s.resolve(ctx, in, &next, &result)
	if in.Game.VenueFee != nil {
		next.VenueFee = *in.Game.VenueFee
	} else if result.VenueAssignment != nil {
		next.VenueFee = result.VenueAssignment.VenueFee
	}

	saved, action, fields, err := s.write(ctx, in, next, now)
	if err != nil {
		recordSpanError(span, err)
		result.Action = SaveError
		result.Message = err.Error()
		s.metrics.countSave(ctx, string(SaveError))
		s.logger.ErrorContext(ctx, "save game failed",
			"entity_id", in.Source.EntityID,
			"tournament_id", in.Game.TournamentID,
			"error", err,
		)
		return result, err
	}

	result.GameID = saved.ID
	result.Action = action
	result.ContentHash = saved.ContentHash
	result.FieldsUpdated = fields
	s.metrics.countSave(ctx, string(action))

	s.runPostHooks(ctx, in, saved, action, &result, now)

	if err := s.handlePlayers(ctx, in, saved, action, &result, now); err != nil {
		recordSpanError(span, err)
		result.Success = false
		result.Message = err.Error()
		return result, err
	}

	result.Success = true
	return result, nil
}

// SaveBatch saves every input independently; one failure never aborts the rest.
func (s *GameSaver) SaveBatch(ctx context.Context, inputs []SaveGameInput) []SaveGameResult {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameSaver.SaveBatch")
	defer span.End()

	out := make([]SaveGameResult, 0, len(inputs))
	for _, in := range inputs {
		res, err := s.Save(ctx, in)
		if err != nil && res.Message == "" {
			res.Message = err.Error()
		}
		out = append(out, res)
	}
	return out
}

func gameFromPayload(in SaveGameInput) game.Game {
	p := in.Game
	g := game.Game{
		EntityID:           in.Source.EntityID,
		TournamentID:       p.TournamentID,
		SourceURL:          strings.TrimSpace(p.SourceURL),
		Name:               strings.TrimSpace(p.Name),
		GameType:           p.GameType,
		GameVariant:        p.GameVariant,
		GameStatus:         game.ParseStatus(string(p.GameStatus)),
		GameStartDateTime:  p.GameStartDateTime.UTC(),
		BuyIn:              p.BuyIn,
		Rake:               p.Rake,
		TotalPrizesPaid:    p.TotalPrizesPaid,
		IsSeries:           p.IsSeries,
		IsSatellite:        p.IsSatellite,
		IsRegular:          p.IsRegular,
		SeriesName:         strings.TrimSpace(p.SeriesName),
		ConsolidationType:  p.ConsolidationType,
		ParentGameID:       p.ParentGameID,
		HasCompleteResults: in.Players != nil && in.Players.HasCompleteResults,
	}
	if p.GameEndDateTime != nil {
		end := p.GameEndDateTime.UTC()
		g.GameEndDateTime = &end
	}
	if g.GameVariant == "" {
		g.GameVariant = game.VariantNLHE
	}

	game.CalculateFinancials(game.FinancialInput{
		BuyIn:               p.BuyIn,
		Rake:                p.Rake,
		GuaranteeAmount:     p.GuaranteeAmount,
		TotalUniquePlayers:  p.TotalUniquePlayers,
		TotalInitialEntries: p.TotalInitialEntries,
		TotalEntries:        p.TotalEntries,
		TotalRebuys:         p.TotalRebuys,
		TotalAddons:         p.TotalAddons,
		ConsolidationType:   p.ConsolidationType,
	}).Apply(&g)
	return g
}

// resolve runs venue, series and recurring resolution in that order.
// Resolver failures downgrade the assignment to PENDING and become warnings.
func (s *GameSaver) resolve(ctx context.Context, in SaveGameInput, g *game.Game, result *SaveGameResult) {
	venueRes, err := s.venues.Resolve(ctx, in.Source.EntityID, in.Venue)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("venue resolution failed: %v", err))
		venueRes = VenueResolution{VenueID: game.UnassignedVenueID, Status: game.AssignmentPending, MatchType: VenueMatchUnassigned}
	}
	g.VenueID = venueRes.VenueID
	g.VenueAssignmentStatus = venueRes.Status
	g.VenueAssignmentConfidence = game.NormalizeConfidence(venueRes.Status, venueRes.Confidence)
	result.VenueAssignment = &venueRes

	seriesRes := SeriesResolution{Status: game.AssignmentNotApplicable}
	if g.IsSeries {
		ref := in.Series
		if ref.empty() && g.SeriesName != "" {
			ref.SeriesName = g.SeriesName
		}
		seriesRes, err = s.seriesRes.Resolve(ctx, SeriesResolveInput{
			Ref:        ref,
			GameStart:  g.GameStartDateTime,
			EntityID:   g.EntityID,
			VenueID:    g.VenueID,
			AutoCreate: s.cfg.SeriesAutoCreate && !in.Options.SkipSeriesAutoCreate,
		})
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("series resolution failed: %v", err))
			seriesRes = SeriesResolution{Status: game.AssignmentPending}
		}
	}
	g.TournamentSeriesID = seriesRes.SeriesID
	g.SeriesAssignmentStatus = seriesRes.Status
	g.SeriesAssignmentConfidence = game.NormalizeConfidence(seriesRes.Status, seriesRes.Confidence)
	result.SeriesAssignment = &seriesRes

	recurringRes, err := s.recurringRes.Resolve(ctx, *g)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("recurring resolution failed: %v", err))
		recurringRes = RecurringResolution{Status: game.AssignmentPending, Action: RecurringNoChange}
	}
	g.RecurringGameID = recurringRes.RecurringGameID
	g.RecurringGameAssignmentStatus = recurringRes.Status
	g.RecurringGameAssignmentConfidence = game.NormalizeConfidence(recurringRes.Status, recurringRes.Confidence)
	g.WasScheduledInstance = recurringRes.RecurringGameID != nil
	if recurringRes.InstanceNumber > 0 {
		instance := recurringRes.InstanceNumber
		g.InstanceNumber = &instance
	}
	result.RecurringGameAssignment = &recurringRes
}

// findExisting tries the explicit id, then the source url, then (entity, tournament).
func (s *GameSaver) findExisting(ctx context.Context, in SaveGameInput, g game.Game) (game.Game, bool, error) {
	if gameID := strings.TrimSpace(in.Options.ExistingGameID); gameID != "" {
		existing, ok, err := s.games.FindByID(ctx, gameID)
		if err != nil || ok {
			return existing, ok, err
		}
	}
	if g.SourceURL != "" {
		existing, ok, err := s.games.FindBySourceURL(ctx, g.SourceURL)
		if err != nil || ok {
			return existing, ok, err
		}
	}
	if g.TournamentID > 0 {
		return s.games.FindByEntityTournament(ctx, g.EntityID, g.TournamentID)
	}
	return game.Game{}, false, nil
}

// write persists next and returns the stored game, the action taken and the changed fields.
// A lost insert race reloads and updates; a lost update race reloads and retries once.
func (s *GameSaver) write(ctx context.Context, in SaveGameInput, next game.Game, now time.Time) (game.Game, SaveAction, []string, error) {
	existing, found, err := s.findExisting(ctx, in, next)
	if err != nil {
		return game.Game{}, SaveError, nil, fmt.Errorf("find existing game: %w", err)
	}

	if !found {
		created, err := s.create(ctx, next, now)
		if err == nil {
			return created, SaveCreated, []string{}, nil
		}
		if !errors.Is(err, game.ErrDuplicateGame) {
			return game.Game{}, SaveError, nil, err
		}
		existing, found, err = s.findExisting(ctx, in, next)
		if err != nil {
			return game.Game{}, SaveError, nil, fmt.Errorf("reload game after duplicate insert: %w", err)
		}
		if !found {
			return game.Game{}, SaveError, nil, fmt.Errorf("%w: game insert collided but no existing record was found", ErrConflict)
		}
	}

	for attempt := 1; ; attempt++ {
		saved, action, fields, err := s.update(ctx, in, existing, next, now)
		if err == nil {
			return saved, action, fields, nil
		}
		if !errors.Is(err, game.ErrVersionConflict) || attempt >= 2 {
			if errors.Is(err, game.ErrVersionConflict) {
				return game.Game{}, SaveError, nil, fmt.Errorf("%w: %v", ErrConflict, err)
			}
			return game.Game{}, SaveError, nil, err
		}
		reloaded, ok, err := s.games.FindByID(ctx, existing.ID)
		if err != nil {
			return game.Game{}, SaveError, nil, fmt.Errorf("reload game after version conflict: %w", err)
		}
		if !ok {
			return game.Game{}, SaveError, nil, fmt.Errorf("%w: game id=%s disappeared during update", ErrConflict, existing.ID)
		}
		existing = reloaded
	}
}

func (s *GameSaver) create(ctx context.Context, g game.Game, now time.Time) (game.Game, error) {
	gameID, err := s.idGen.NewID()
	if err != nil {
		return game.Game{}, fmt.Errorf("generate game id: %w", err)
	}
	g.ID = gameID
	g.Keys = game.DeriveKeys(game.KeyInputFor(g))
	hash, err := game.ContentHash(g)
	if err != nil {
		return game.Game{}, err
	}
	g.ContentHash = hash
	changedAt := now
	g.DataChangedAt = &changedAt
	g.Version = 1
	g.LastChangedAt = now
	g.CreatedAt = now
	g.UpdatedAt = now

	if err := g.Validate(); err != nil {
		return game.Game{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.games.Insert(ctx, g); err != nil {
		return game.Game{}, fmt.Errorf("insert game: %w", err)
	}
	return g, nil
}

func (s *GameSaver) update(ctx context.Context, in SaveGameInput, existing, next game.Game, now time.Time) (game.Game, SaveAction, []string, error) {
	next = preserveAssignments(existing, next, in)
	next.ID = existing.ID
	next.CreatedAt = existing.CreatedAt
	if next.SourceURL == "" {
		next.SourceURL = existing.SourceURL
	}
	if next.TournamentID == 0 {
		next.TournamentID = existing.TournamentID
	}
	// A late scrape may still show the game live; a terminal status only moves on force.
	if existing.GameStatus.IsTerminal() && !next.GameStatus.IsTerminal() && !in.Options.ForceUpdate {
		next.GameStatus = existing.GameStatus
	}

	next.Keys = game.DeriveKeys(game.KeyInputFor(next))
	hash, err := game.ContentHash(next)
	if err != nil {
		return game.Game{}, SaveError, nil, err
	}
	next.ContentHash = hash

	changed, fields, err := game.DetectChanges(existing, next)
	if err != nil {
		return game.Game{}, SaveError, nil, err
	}
	legacyKeys := existing.Keys.AllNil() && next.GameStatus != game.StatusNotPublished
	relocated := next.SourceURL != existing.SourceURL || next.TournamentID != existing.TournamentID
	if !changed && !legacyKeys && !relocated && !in.Options.ForceUpdate {
		return existing, SaveSkipped, []string{}, nil
	}

	if changed {
		changedAt := now
		next.DataChangedAt = &changedAt
	} else {
		next.DataChangedAt = existing.DataChangedAt
	}
	next.Version = existing.Version + 1
	next.LastChangedAt = now
	next.UpdatedAt = now

	writeFields := slices.Clone(fields)
	writeFields = append(writeFields,
		game.FieldVenueAssignment, game.FieldSeriesAssignment, game.FieldRecurringAssignment,
		game.FieldContentHash, game.FieldDataChangedAt)
	if next.SourceURL != existing.SourceURL {
		writeFields = append(writeFields, game.FieldSourceURL)
	}
	if next.TournamentID != existing.TournamentID {
		writeFields = append(writeFields, game.FieldTournamentID)
	}
	if game.ShouldRecomputeKeys(fields) || legacyKeys {
		writeFields = append(writeFields, game.FieldQueryKeys)
	} else {
		next.Keys = existing.Keys
	}

	if err := s.games.Update(ctx, next, existing.Version, writeFields); err != nil {
		return game.Game{}, SaveError, nil, fmt.Errorf("update game id=%s: %w", existing.ID, err)
	}
	return next, SaveUpdated, fields, nil
}

// preserveAssignments keeps MANUAL assignments unless the caller supplied a new explicit reference.
func preserveAssignments(existing, next game.Game, in SaveGameInput) game.Game {
	if existing.VenueAssignmentStatus == game.AssignmentManual && strings.TrimSpace(in.Venue.VenueID) == "" {
		next.VenueID = existing.VenueID
		next.VenueAssignmentStatus = existing.VenueAssignmentStatus
		next.VenueAssignmentConfidence = existing.VenueAssignmentConfidence
		if in.Game.VenueFee == nil {
			next.VenueFee = existing.VenueFee
		}
	}
	if existing.SeriesAssignmentStatus == game.AssignmentManual && strings.TrimSpace(in.Series.SeriesTitleID) == "" {
		next.TournamentSeriesID = existing.TournamentSeriesID
		next.SeriesAssignmentStatus = existing.SeriesAssignmentStatus
		next.SeriesAssignmentConfidence = existing.SeriesAssignmentConfidence
	}
	if existing.RecurringGameAssignmentStatus == game.AssignmentManual {
		next.RecurringGameID = existing.RecurringGameID
		next.RecurringGameAssignmentStatus = existing.RecurringGameAssignmentStatus
		next.RecurringGameAssignmentConfidence = existing.RecurringGameAssignmentConfidence
	}
	next.WasScheduledInstance = next.RecurringGameID != nil
	if sameID(existing.RecurringGameID, next.RecurringGameID) {
		next.InstanceNumber = existing.InstanceNumber
	}
	next.IsReplacementInstance = existing.IsReplacementInstance
	next.ReplacementReason = existing.ReplacementReason
	next.DeviationNotes = existing.DeviationNotes
	return next
}

// runPostHooks never fails the save; every error is logged and reported as a warning.
func (s *GameSaver) runPostHooks(ctx context.Context, in SaveGameInput, g game.Game, action SaveAction, result *SaveGameResult, now time.Time) {
	warn := func(hook string, err error) {
		s.logger.WarnContext(ctx, "save post-hook failed",
			"hook", hook,
			"game_id", g.ID,
			"entity_id", g.EntityID,
			"error", err,
		)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", hook, err))
	}

	if s.attempts != nil && g.SourceURL != "" {
		status := scrapeurl.AttemptSuccess
		if action == SaveSkipped {
			status = scrapeurl.AttemptSkipped
		}
		if g.GameStatus == game.StatusNotPublished {
			status = scrapeurl.AttemptNotPublished
		}
		err := s.attempts.RecordAttempt(ctx, AttemptInput{
			URL:          g.SourceURL,
			EntityID:     g.EntityID,
			TournamentID: g.TournamentID,
			JobID:        in.Source.JobID,
			Status:       status,
			Action:       string(action),
			GameID:       g.ID,
			GameStatus:   g.GameStatus,
			ContentHash:  in.Source.ContentHash,
		})
		if err != nil {
			warn("scrape url tracking", err)
		}
	}

	if action == SaveCreated && g.TournamentSeriesID != nil && s.seriesRepo != nil {
		if err := s.seriesRepo.ExpandRange(ctx, *g.TournamentSeriesID, g.GameStartDateTime); err != nil {
			warn("series range", err)
		}
	}

	if action == SaveCreated && g.RecurringGameID != nil && s.recurringRepo != nil &&
		g.RecurringGameAssignmentStatus == game.AssignmentAutoAssigned {
		if err := s.recurringRepo.RecordOccurrence(ctx, *g.RecurringGameID, g.GameStartDateTime); err != nil {
			warn("recurring occurrence", err)
		}
	}

	if (action == SaveCreated || action == SaveUpdated) && s.snapshots != nil {
		if err := s.snapshots.UpsertSnapshot(ctx, game.SnapshotFrom(g, now)); err != nil {
			warn("financial snapshot", err)
		}
	}
}

// handlePlayers enqueues finished results or refreshes live entries.
func (s *GameSaver) handlePlayers(ctx context.Context, in SaveGameInput, g game.Game, action SaveAction, result *SaveGameResult, now time.Time) error {
	if in.Players == nil || len(in.Players.AllPlayers) == 0 || action == SaveSkipped {
		return nil
	}

	switch {
	case g.GameStatus == game.StatusFinished:
		queued, err := s.enqueuePlayers(ctx, in, g, now)
		result.PlayerBatchesQueued = queued
		if err != nil {
			return err
		}
		result.PlayerProcessingQueued = true
		return nil
	case g.GameStatus.IsLive():
		if s.entries == nil {
			return nil
		}
		if err := s.entries.UpsertEntries(ctx, g.ID, liveEntries(g, in.Players.AllPlayers, now)); err != nil {
			s.logger.WarnContext(ctx, "live player entries update failed",
				"game_id", g.ID,
				"error", err,
			)
			result.Warnings = append(result.Warnings, fmt.Sprintf("player entries: %v", err))
		}
	}
	return nil
}

// enqueuePlayers sends every batch with bounded parallelism. Deduplication ids are fixed
// for this save so retried batches collapse downstream.
func (s *GameSaver) enqueuePlayers(ctx context.Context, in SaveGameInput, g game.Game, now time.Time) (int, error) {
	if s.queue == nil {
		return 0, fmt.Errorf("%w: player queue is not configured", ErrQueue)
	}

	players := in.Players.AllPlayers
	batches := game.SplitPlayerBatches(players, s.cfg.PlayerBatchSize)
	epochMs := now.UnixMilli()
	batchGame := game.BatchGameFrom(g)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.cfg.PlayerEnqueueParallel)
	for i, batch := range batches {
		msg := game.PlayerBatchMessage{
			Game: batchGame,
			Players: game.PlayerList{
				AllPlayers:         batch,
				TotalUniquePlayers: in.Players.TotalUniquePlayers,
				HasCompleteResults: in.Players.HasCompleteResults,
				TotalPrizesPaid:    in.Players.TotalPrizesPaid,
			},
			Metadata: game.PlayerBatchMetadata{
				ProcessedAt:        now,
				SourceURL:          g.SourceURL,
				BatchIndex:         i,
				BatchCount:         len(batches),
				TotalPlayersInGame: len(players),
				WasEdited:          in.Options.WasEdited,
			},
			GroupID:         g.ID,
			DeduplicationID: game.BatchDeduplicationID(g.ID, i, epochMs),
		}
		p.Go(func(ctx context.Context) error {
			return resilience.Retry(ctx, s.cfg.PlayerEnqueueRetry, func(ctx context.Context, attempt int) error {
				if err := s.queue.Enqueue(ctx, msg); err != nil {
					s.logger.WarnContext(ctx, "player batch enqueue failed",
						"game_id", g.ID,
						"batch_index", msg.Metadata.BatchIndex,
						"attempt", attempt,
						"error", err,
					)
					return err
				}
				return nil
			})
		})
	}

	if err := p.Wait(); err != nil {
		return 0, fmt.Errorf("%w: enqueue player batches game=%s: %v", ErrQueue, g.ID, err)
	}
	s.metrics.countBatches(ctx, len(batches))
	s.logger.InfoContext(ctx, "player batches queued",
		"game_id", g.ID,
		"batches", len(batches),
		"players", len(players),
	)
	return len(batches), nil
}

func liveEntries(g game.Game, players []game.PlayerResult, now time.Time) []game.PlayerEntry {
	out := make([]game.PlayerEntry, 0, len(players))
	for _, p := range players {
		entry := game.PlayerEntry{
			GameID:     g.ID,
			EntityID:   g.EntityID,
			PlayerName: p.Name,
			Status:     game.EntryStatusPlaying,
			Winnings:   p.Winnings,
			UpdatedAt:  now,
		}
		if p.Rank > 0 {
			rank := p.Rank
			entry.Rank = &rank
			entry.Status = game.EntryStatusEliminated
		}
		out = append(out, entry)
	}
	return out
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
