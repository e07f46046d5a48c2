package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrape"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	scrapemock "github.com/riskibarqy/kingsroom-ingest/internal/mocks/domain/scrape"
)

type runnerFixture struct {
	*savePipeline
	jobs    *memory.ScraperJobRepository
	store   *memory.BlobStore
	records *memory.BlobRepository
	fetcher *scrapemock.Fetcher
	parser  *scrapemock.Parser
	runner  *ScrapeRunner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	logger := logging.NewNop()
	f := &runnerFixture{
		savePipeline: newSavePipeline(t, nil),
		jobs:         memory.NewScraperJobRepository(),
		store:        memory.NewBlobStore(),
		records:      memory.NewBlobRepository(),
		fetcher:      scrapemock.NewFetcher(t),
		parser:       scrapemock.NewParser(t),
	}
	blobs := NewBlobTracker(f.store, f.records, &id.Sequence{Prefix: "blob-"}, logger)
	blobs.now = fixedClock
	gaps := NewGapTracker(f.games, memory.NewScraperStateRepository(), GapTrackerConfig{}, logger)
	gaps.now = fixedClock

	f.runner = NewScrapeRunner(ScrapeRunnerDeps{
		Jobs:     f.jobs,
		Entities: memory.NewEntityRepository([]entity.Entity{testEntity()}),
		Games:    f.games,
		URLs:     f.urls,
		Fetcher:  f.fetcher,
		Parser:   f.parser,
		Blobs:    blobs,
		Saver:    f.saver,
		Gaps:     gaps,
		URLSvc:   f.urlSvc,
	}, ScrapeRunnerConfig{}, logger)
	f.runner.now = fixedClock
	return f
}

func (f *runnerFixture) createJob(t *testing.T, job scraperjob.Job) {
	t.Helper()
	if job.ID == "" {
		job.ID = "job-1"
	}
	job.EntityID = testEntityID
	job.Status = scraperjob.StatusPending
	job.StartTime = testNow
	job.CreatedAt = testNow
	if err := f.jobs.Create(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func (f *runnerFixture) job(t *testing.T, jobID string) scraperjob.Job {
	t.Helper()
	job, ok, err := f.jobs.GetByID(context.Background(), jobID)
	if err != nil || !ok {
		t.Fatalf("job %s missing: ok=%v err=%v", jobID, ok, err)
	}
	return job
}

func pageURL(tid int64) string {
	return testEntity().GameURL(tid)
}

func scheduledPage(name string) scrape.ParseResult {
	return scrape.ParseResult{
		Status: scrape.PageOK,
		Game: game.Payload{
			Name:              name,
			GameType:          game.TypeTournament,
			GameStatus:        game.StatusScheduled,
			GameStartDateTime: time.Date(2026, time.March, 9, 19, 0, 0, 0, time.UTC),
			BuyIn:             100,
			Rake:              10,
		},
		VenueName: "Kings Room Main",
	}
}

func TestScrapeRunner_StopsAfterConsecutiveNotFound(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	ctx := context.Background()

	// NF, NF, OK, NF, NF, NF: the OK resets the streak, the third NF after it stops the job
	body := []byte("<html>tournament 3</html>")
	for _, tid := range []int64{1, 2, 4, 5, 6} {
		f.fetcher.On("Fetch", mock.Anything, pageURL(tid)).Return(scrape.FetchResult{}, scrape.ErrPageNotFound).Once()
	}
	f.fetcher.On("Fetch", mock.Anything, pageURL(3)).Return(scrape.FetchResult{URL: pageURL(3), StatusCode: 200, Body: body}, nil).Once()
	f.parser.On("Parse", mock.Anything, body, pageURL(3)).Return(scheduledPage("Tuesday Turbo"), nil).Once()

	f.createJob(t, scraperjob.Job{
		Mode:       scraperjob.ModeRange,
		StartID:    int64Ptr(1),
		EndID:      int64Ptr(10),
		Thresholds: scraperjob.Thresholds{MaxConsecutiveNotFound: 3, MaxConsecutiveErrors: 3},
	})

	if err := f.runner.Run(ctx, "job-1"); err != nil {
		t.Fatalf("run job: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != scraperjob.StatusStoppedNotFound {
		t.Fatalf("expected STOPPED_NOT_FOUND, got %s (%s)", job.Status, job.StopReason)
	}
	c := job.Counters
	if c.Processed != 6 || c.New != 1 || c.NotFound != 5 || c.ConsecutiveNotFound != 3 || c.LastProcessedID != 6 {
		t.Fatalf("unexpected counters: %+v", c)
	}
	if job.EndTime == nil || job.DurationSeconds == nil {
		t.Fatalf("finished job must carry end time and duration")
	}

	ids, _ := f.urls.ListNotFoundIDs(ctx, testEntityID)
	if len(ids) != 5 {
		t.Fatalf("expected 5 not-found urls tracked, got %v", ids)
	}
}

func TestScrapeRunner_UnchangedPageIsCacheHit(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	ctx := context.Background()

	body := []byte("<html>tournament 7</html>")
	f.fetcher.On("Fetch", mock.Anything, pageURL(7)).Return(scrape.FetchResult{Body: body}, nil).Twice()
	f.parser.On("Parse", mock.Anything, body, pageURL(7)).Return(scheduledPage("Sunday Major"), nil).Once()

	f.createJob(t, scraperjob.Job{ID: "job-a", Mode: scraperjob.ModeRange, StartID: int64Ptr(7), EndID: int64Ptr(7)})
	if err := f.runner.Run(ctx, "job-a"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	f.createJob(t, scraperjob.Job{ID: "job-b", Mode: scraperjob.ModeRange, StartID: int64Ptr(7), EndID: int64Ptr(7)})
	if err := f.runner.Run(ctx, "job-b"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	first, second := f.job(t, "job-a"), f.job(t, "job-b")
	if first.Counters.New != 1 || first.Status != scraperjob.StatusCompleted {
		t.Fatalf("unexpected first job: status=%s counters=%+v", first.Status, first.Counters)
	}
	if second.Counters.S3CacheHits != 1 || second.Counters.Skipped != 1 {
		t.Fatalf("expected a cache hit on the second job, got %+v", second.Counters)
	}
	if f.store.Len() != 1 {
		t.Fatalf("identical html must be stored once, got %d blobs", f.store.Len())
	}
	rec, ok, _ := f.records.FindByEntityTournament(ctx, testEntityID, 7)
	if !ok || rec.ParseCount != 2 {
		t.Fatalf("expected parse count bumped on cache hit, got ok=%v record=%+v", ok, rec)
	}
}

func TestScrapeRunner_ObservesManualCancel(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	ctx := context.Background()

	f.fetcher.On("Fetch", mock.Anything, pageURL(20)).
		Run(func(mock.Arguments) {
			_, _ = f.jobs.TransitionStatus(ctx, "job-1",
				[]scraperjob.Status{scraperjob.StatusPending, scraperjob.StatusRunning},
				scraperjob.StatusStoppedManual, "operator", testNow)
		}).
		Return(scrape.FetchResult{}, scrape.ErrPageNotFound).Once()

	f.createJob(t, scraperjob.Job{Mode: scraperjob.ModeRange, StartID: int64Ptr(20), EndID: int64Ptr(30)})
	if err := f.runner.Run(ctx, "job-1"); err != nil {
		t.Fatalf("run job: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != scraperjob.StatusStoppedManual {
		t.Fatalf("expected STOPPED_MANUAL, got %s", job.Status)
	}
	if job.Counters.Processed != 1 {
		t.Fatalf("cancel must be observed before the next url, processed=%d", job.Counters.Processed)
	}
}

func TestScrapeRunner_ConsecutiveFetchErrorsStopJob(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything).Return(scrape.FetchResult{}, errors.New("connection reset")).Times(3)

	f.createJob(t, scraperjob.Job{Mode: scraperjob.ModeBulk, BulkCount: intPtr(50)})
	if err := f.runner.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("run job: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != scraperjob.StatusStoppedErrors || job.Counters.Errors != 3 {
		t.Fatalf("unexpected job: status=%s counters=%+v", job.Status, job.Counters)
	}
	row, ok, _ := f.urls.GetByURL(context.Background(), pageURL(1))
	if !ok || row.LastAttemptStatus != scrapeurl.AttemptFetchError || row.ConsecutiveFailures != 1 {
		t.Fatalf("unexpected url tracking: ok=%v row=%+v", ok, row)
	}
}

func TestScrapeRunner_SkipsDoNotScrapeURLs(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	ctx := context.Background()
	if err := f.urls.Upsert(ctx, scrapeurl.ScrapeURL{
		ID: "url-x", URL: pageURL(5), EntityID: testEntityID, TournamentID: 5,
		Status: scrapeurl.StatusDoNotScrape, DoNotScrape: true,
	}); err != nil {
		t.Fatalf("seed url: %v", err)
	}

	f.createJob(t, scraperjob.Job{Mode: scraperjob.ModeRange, StartID: int64Ptr(5), EndID: int64Ptr(5)})
	if err := f.runner.Run(ctx, "job-1"); err != nil {
		t.Fatalf("run job: %v", err)
	}
	job := f.job(t, "job-1")
	if job.Status != scraperjob.StatusCompleted || job.Counters.Skipped != 1 {
		t.Fatalf("unexpected job: status=%s counters=%+v", job.Status, job.Counters)
	}
}

func TestScrapeRunner_GapModeVisitsMissingIDs(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	ctx := context.Background()
	for _, tid := range []int64{1, 2, 5} {
		g := game.Game{ID: fmt.Sprintf("seed-%d", tid), EntityID: testEntityID, TournamentID: tid, SourceURL: pageURL(tid),
			Name: "seed", GameStatus: game.StatusFinished, GameStartDateTime: testNow}
		if err := f.games.Insert(ctx, g); err != nil {
			t.Fatalf("seed game: %v", err)
		}
	}
	for _, tid := range []int64{3, 4} {
		f.fetcher.On("Fetch", mock.Anything, pageURL(tid)).Return(scrape.FetchResult{}, scrape.ErrPageNotFound).Once()
	}

	f.createJob(t, scraperjob.Job{Mode: scraperjob.ModeGaps})
	if err := f.runner.Run(ctx, "job-1"); err != nil {
		t.Fatalf("run job: %v", err)
	}
	job := f.job(t, "job-1")
	if job.Counters.Processed != 2 || job.Counters.LastProcessedID != 4 {
		t.Fatalf("expected gaps 3 and 4 visited, got %+v", job.Counters)
	}
}

func TestScrapeRunner_ProcessUploadSavesManualSource(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	ctx := context.Background()
	html := "<html>edited results</html>"
	f.parser.On("Parse", mock.Anything, []byte(html), pageURL(42)).Return(scheduledPage("Friday Freezeout"), nil).Once()

	res, err := f.runner.ProcessUpload(ctx, ManualUploadInput{EntityID: testEntityID, TournamentID: 42, HTML: html, WasEdited: true})
	if err != nil {
		t.Fatalf("process upload: %v", err)
	}
	if res.Action != SaveCreated {
		t.Fatalf("expected CREATED, got %s", res.Action)
	}
	rec, ok, _ := f.records.FindByEntityTournament(ctx, testEntityID, 42)
	if !ok || rec.Source != "MANUAL" {
		t.Fatalf("expected manual blob record, got ok=%v record=%+v", ok, rec)
	}

	if _, err := f.runner.ProcessUpload(ctx, ManualUploadInput{EntityID: testEntityID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty upload, got %v", err)
	}
}

func TestScrapeRunner_OversizedRangeFailsBeforeFetching(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t)
	f.createJob(t, scraperjob.Job{Mode: scraperjob.ModeRange, StartID: int64Ptr(1), EndID: int64Ptr(10_000_000_000)})
	if err := f.runner.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("run job: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != scraperjob.StatusFailed || job.StopReason == "" {
		t.Fatalf("expected FAILED with a reason, got status=%s reason=%q", job.Status, job.StopReason)
	}
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}
