package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/naming"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const (
	seriesTitleMatchThreshold = 70
	seriesAssignThreshold     = 60
	seriesExistingCap         = 0.8
	seriesCreatedConfidence   = 0.9
	seriesRangePadding        = 7 * 24 * time.Hour
	seriesVenueBonus          = 10
)

type SeriesRef struct {
	SeriesTitleID string `json:"seriesTitleId,omitempty"`
	SeriesName    string `json:"seriesName,omitempty"`
}

func (r SeriesRef) empty() bool {
	return strings.TrimSpace(r.SeriesTitleID) == "" && strings.TrimSpace(r.SeriesName) == ""
}

type SeriesResolution struct {
	SeriesID      *string               `json:"seriesId,omitempty"`
	SeriesName    string                `json:"seriesName,omitempty"`
	TitleID       string                `json:"seriesTitleId,omitempty"`
	Status        game.AssignmentStatus `json:"status"`
	Confidence    float64               `json:"confidence"`
	Score         int                   `json:"score"`
	WasCreated    bool                  `json:"wasCreated"`
	UsedExisting  bool                  `json:"usedExistingToAvoidDuplicate,omitempty"`
	SuggestedName string                `json:"suggestedName,omitempty"`
}

type SeriesResolveInput struct {
	Ref        SeriesRef
	GameStart  time.Time
	EntityID   string
	VenueID    string
	AutoCreate bool
}

type SeriesResolver struct {
	titleRepo  series.TitleRepository
	seriesRepo series.Repository
	idGen      id.Generator
	logger     *logging.Logger
	now        func() time.Time
}

func NewSeriesResolver(titleRepo series.TitleRepository, seriesRepo series.Repository, idGen id.Generator, logger *logging.Logger) *SeriesResolver {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewUUIDGenerator()
	}
	return &SeriesResolver{
		titleRepo:  titleRepo,
		seriesRepo: seriesRepo,
		idGen:      idGen,
		logger:     logger,
		now:        time.Now,
	}
}

type scoredSeries struct {
	series series.Series
	score  int
}

func (r *SeriesResolver) Resolve(ctx context.Context, in SeriesResolveInput) (SeriesResolution, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SeriesResolver.Resolve")
	defer span.End()

	if in.Ref.empty() {
		return SeriesResolution{Status: game.AssignmentNotApplicable}, nil
	}

	title, found, err := r.resolveTitle(ctx, in.Ref)
	if err != nil {
		return SeriesResolution{}, err
	}

	start := in.GameStart.UTC()
	candidates, err := r.candidates(ctx, title, found, start.Year(), in.EntityID)
	if err != nil {
		return SeriesResolution{}, err
	}

	refName := strings.TrimSpace(in.Ref.SeriesName)
	if refName == "" && found {
		refName = title.Title
	}

	scored := make([]scoredSeries, 0, len(candidates))
	for _, c := range candidates {
		score := temporalScore(c, start) + nameBonus(naming.Similarity(refName, c.Name))
		if in.VenueID != "" && c.VenueID == in.VenueID {
			score += seriesVenueBonus
		}
		scored = append(scored, scoredSeries{series: c, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if len(scored) > 0 && scored[0].score >= seriesAssignThreshold {
		best := scored[0]
		return assignedSeries(best.series, best.score, min(1, float64(best.score)/100)), nil
	}

	for _, s := range scored {
		if s.series.Year != start.Year() {
			continue
		}
		res := assignedSeries(s.series, s.score, min(seriesExistingCap, float64(s.score)/100))
		res.UsedExisting = true
		return res, nil
	}

	if in.AutoCreate && found {
		created, err := r.create(ctx, title, in, start, candidates)
		if err != nil {
			return SeriesResolution{}, err
		}
		res := assignedSeries(created, 0, seriesCreatedConfidence)
		res.WasCreated = true
		return res, nil
	}

	suggested := naming.TitleCase(naming.NormalizeSeriesName(refName))
	if suggested != "" {
		suggested = fmt.Sprintf("%s %d", suggested, start.Year())
	}
	return SeriesResolution{
		TitleID:       title.ID,
		Status:        game.AssignmentPending,
		SuggestedName: suggested,
	}, nil
}

func (r *SeriesResolver) resolveTitle(ctx context.Context, ref SeriesRef) (series.Title, bool, error) {
	if titleID := strings.TrimSpace(ref.SeriesTitleID); titleID != "" {
		title, ok, err := r.titleRepo.GetTitleByID(ctx, titleID)
		if err != nil {
			return series.Title{}, false, fmt.Errorf("get series title=%s: %w", titleID, err)
		}
		if ok {
			return title, true, nil
		}
	}

	name := strings.TrimSpace(ref.SeriesName)
	if name == "" {
		return series.Title{}, false, nil
	}
	titles, err := r.titleRepo.ListTitles(ctx)
	if err != nil {
		return series.Title{}, false, fmt.Errorf("list series titles: %w", err)
	}

	var (
		best      series.Title
		bestScore = -1
	)
	for _, t := range titles {
		score := naming.Similarity(name, t.Title)
		for _, alias := range t.Aliases {
			score = max(score, naming.Similarity(name, alias))
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	if bestScore < seriesTitleMatchThreshold {
		return series.Title{}, false, nil
	}
	return best, true, nil
}

// candidates merges the title's instances with every instance of the game's year.
func (r *SeriesResolver) candidates(ctx context.Context, title series.Title, hasTitle bool, year int, entityID string) ([]series.Series, error) {
	seen := make(map[string]struct{})
	out := make([]series.Series, 0)
	add := func(items []series.Series) {
		for _, s := range items {
			if _, ok := seen[s.ID]; ok {
				continue
			}
			if entityID != "" && s.EntityID != "" && s.EntityID != entityID {
				continue
			}
			seen[s.ID] = struct{}{}
			out = append(out, s)
		}
	}

	if hasTitle {
		byTitle, err := r.seriesRepo.ListByTitle(ctx, title.ID)
		if err != nil {
			return nil, fmt.Errorf("list series by title=%s: %w", title.ID, err)
		}
		add(byTitle)
	}
	byYear, err := r.seriesRepo.ListByYear(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("list series by year=%d: %w", year, err)
	}
	add(byYear)
	return out, nil
}

func (r *SeriesResolver) create(ctx context.Context, title series.Title, in SeriesResolveInput, start time.Time, candidates []series.Series) (series.Series, error) {
	seriesID, err := r.idGen.NewID()
	if err != nil {
		return series.Series{}, fmt.Errorf("generate series id: %w", err)
	}

	now := r.now().UTC()
	created := series.Series{
		ID:        seriesID,
		TitleID:   title.ID,
		EntityID:  in.EntityID,
		VenueID:   in.VenueID,
		Year:      start.Year(),
		Status:    series.StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sameYear, anyCandidate := false, len(candidates) > 0
	for _, c := range candidates {
		if c.TitleID == title.ID && c.Year == start.Year() {
			sameYear = true
			break
		}
	}

	month := int(start.Month())
	switch {
	case sameYear:
		created.Month = &month
		created.Name = fmt.Sprintf("%s %s %d", title.Title, start.Month().String(), start.Year())
	case anyCandidate:
		quarter := series.QuarterOf(month)
		created.Quarter = &quarter
		created.Name = fmt.Sprintf("%s Q%d %d", title.Title, quarter, start.Year())
	default:
		created.Name = fmt.Sprintf("%s %d", title.Title, start.Year())
	}

	if err := created.Validate(); err != nil {
		return series.Series{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := r.seriesRepo.Create(ctx, created); err != nil {
		return series.Series{}, fmt.Errorf("create series: %w", err)
	}

	r.logger.InfoContext(ctx, "series auto-created",
		"series_id", created.ID,
		"series_name", created.Name,
		"title_id", title.ID,
		"entity_id", in.EntityID,
	)
	return created, nil
}

func assignedSeries(s series.Series, score int, confidence float64) SeriesResolution {
	seriesID := s.ID
	return SeriesResolution{
		SeriesID:   &seriesID,
		SeriesName: s.Name,
		TitleID:    s.TitleID,
		Status:     game.AssignmentAutoAssigned,
		Confidence: confidence,
		Score:      score,
	}
}

// temporalScore rates how close start is to the series window on a 0..100 scale.
func temporalScore(s series.Series, start time.Time) int {
	if s.StartDate != nil && s.EndDate != nil {
		from := s.StartDate.UTC().Add(-seriesRangePadding)
		to := s.EndDate.UTC().Add(seriesRangePadding)
		if !start.Before(from) && !start.After(to) {
			return 100
		}
	}
	if s.Year != start.Year() {
		return 0
	}

	gameMonth := int(start.Month())
	if month, ok := s.EffectiveMonth(); ok {
		switch abs(gameMonth - month) {
		case 0:
			return 95
		case 1:
			return 85
		case 2:
			return 75
		}
	}
	if quarter, ok := s.EffectiveQuarter(); ok {
		switch abs(series.QuarterOf(gameMonth) - quarter) {
		case 0:
			return 70
		case 1:
			return 60
		}
	}
	return 50
}

func nameBonus(similarity int) int {
	switch {
	case similarity >= 90:
		return 15
	case similarity >= 70:
		return 10
	case similarity >= 50:
		return 5
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
