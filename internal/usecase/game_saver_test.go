package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	gamemock "github.com/riskibarqy/kingsroom-ingest/internal/mocks/domain/game"
)

func TestGameSaver_CreateFinishedTournamentQueuesPlayerBatches(t *testing.T) {
	t.Parallel()

	queue := gamemock.NewPlayerQueue(t)
	p := newSavePipeline(t, queue)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		msgs []game.PlayerBatchMessage
	)
	queue.
		On("Enqueue", mock.Anything, mock.AnythingOfType("game.PlayerBatchMessage")).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			msgs = append(msgs, args.Get(1).(game.PlayerBatchMessage))
		}).
		Return(nil).
		Times(4)

	res, err := p.saver.Save(ctx, finishedTournament(1001))
	if err != nil {
		t.Fatalf("save game: %v", err)
	}
	if !res.Success || res.Action != SaveCreated {
		t.Fatalf("unexpected result: success=%v action=%s", res.Success, res.Action)
	}
	if !res.PlayerProcessingQueued || res.PlayerBatchesQueued != 4 {
		t.Fatalf("expected 4 queued batches, got queued=%v batches=%d", res.PlayerProcessingQueued, res.PlayerBatchesQueued)
	}

	stored, ok, err := p.games.FindByID(ctx, res.GameID)
	if err != nil || !ok {
		t.Fatalf("stored game missing: ok=%v err=%v", ok, err)
	}
	if stored.TotalRebuys != 40 {
		t.Fatalf("unexpected rebuys: got=%d want=40", stored.TotalRebuys)
	}
	if stored.RakeRevenue != 1180 || stored.GameProfit != 1180 {
		t.Fatalf("unexpected rake revenue/profit: %v/%v", stored.RakeRevenue, stored.GameProfit)
	}
	if stored.PrizepoolPlayerContributions != 10620 {
		t.Fatalf("unexpected contributions: %v", stored.PrizepoolPlayerContributions)
	}
	if stored.GuaranteeOverlayCost != 0 || stored.PrizepoolSurplus == nil || *stored.PrizepoolSurplus != 5620 {
		t.Fatalf("unexpected overlay/surplus: %v/%v", stored.GuaranteeOverlayCost, stored.PrizepoolSurplus)
	}
	if stored.VenueID != "v-main" || stored.VenueFee != 5 {
		t.Fatalf("expected venue v-main with its fee, got venue=%s fee=%v", stored.VenueID, stored.VenueFee)
	}
	if !stored.Keys.AllSet() {
		t.Fatalf("expected every query key to be set for a published game")
	}
	if stored.Version != 1 || stored.DataChangedAt == nil {
		t.Fatalf("unexpected version bookkeeping: version=%d dataChangedAt=%v", stored.Version, stored.DataChangedAt)
	}

	sizes := make([]int, 0, len(msgs))
	dedup := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		sizes = append(sizes, len(m.Players.AllPlayers))
		if m.GroupID != res.GameID {
			t.Fatalf("batch grouped under %q, want game id %q", m.GroupID, res.GameID)
		}
		want := game.BatchDeduplicationID(res.GameID, m.Metadata.BatchIndex, testNow.UnixMilli())
		if m.DeduplicationID != want {
			t.Fatalf("unexpected dedup id: got=%s want=%s", m.DeduplicationID, want)
		}
		dedup[m.DeduplicationID] = struct{}{}
	}
	slices.Sort(sizes)
	if !slices.Equal(sizes, []int{3, 25, 25, 25}) {
		t.Fatalf("unexpected batch sizes: %v", sizes)
	}
	if len(dedup) != 4 {
		t.Fatalf("dedup ids must be unique per batch, got %d distinct", len(dedup))
	}

	if _, ok := p.snapshots.Get(res.GameID); !ok {
		t.Fatalf("expected financial snapshot to be written")
	}
	row, ok, _ := p.urls.GetByURL(ctx, stored.SourceURL)
	if !ok || row.LastAttemptStatus != scrapeurl.AttemptSuccess || row.GameID != res.GameID {
		t.Fatalf("expected scrape url tracking to record success, got ok=%v row=%+v", ok, row)
	}
}

func TestGameSaver_ResaveWithoutChangesIsSkipped(t *testing.T) {
	t.Parallel()

	queue := gamemock.NewPlayerQueue(t)
	p := newSavePipeline(t, queue)
	ctx := context.Background()

	queue.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Times(4)

	first, err := p.saver.Save(ctx, finishedTournament(1002))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	before, _, _ := p.games.FindByID(ctx, first.GameID)

	p.saver.now = func() time.Time { return testNow.Add(6 * time.Hour) }
	second, err := p.saver.Save(ctx, finishedTournament(1002))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Action != SaveSkipped {
		t.Fatalf("expected SKIPPED, got %s", second.Action)
	}
	if second.GameID != first.GameID || second.ContentHash != first.ContentHash {
		t.Fatalf("re-save must keep id and hash: %s/%s vs %s/%s", second.GameID, second.ContentHash, first.GameID, first.ContentHash)
	}
	if second.PlayerProcessingQueued {
		t.Fatalf("skipped save must not queue players")
	}

	after, _, _ := p.games.FindByID(ctx, first.GameID)
	if !after.DataChangedAt.Equal(*before.DataChangedAt) || after.Version != before.Version {
		t.Fatalf("skipped save changed the record: dataChangedAt %v->%v version %d->%d",
			before.DataChangedAt, after.DataChangedAt, before.Version, after.Version)
	}
}

func TestGameSaver_NotPublishedThenScheduledPopulatesKeys(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(1003)
	in.Players = nil
	in.Game.GameStatus = game.StatusNotPublished
	first, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("save unpublished: %v", err)
	}
	stored, _, _ := p.games.FindByID(ctx, first.GameID)
	if !stored.Keys.AllNil() {
		t.Fatalf("unpublished game must have no query keys, got %+v", stored.Keys)
	}

	in.Game.GameStatus = game.StatusScheduled
	second, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("save scheduled: %v", err)
	}
	if second.Action != SaveUpdated {
		t.Fatalf("expected UPDATED, got %s", second.Action)
	}
	if !slices.Contains(second.FieldsUpdated, game.FieldGameStatus) {
		t.Fatalf("expected gameStatus in updated fields, got %v", second.FieldsUpdated)
	}
	stored, _, _ = p.games.FindByID(ctx, first.GameID)
	if !stored.Keys.AllSet() {
		t.Fatalf("published game must have every query key, got %+v", stored.Keys)
	}
	if stored.Version != 2 {
		t.Fatalf("expected version 2, got %d", stored.Version)
	}
}

func TestGameSaver_SeriesGameJoinsExistingSeries(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	ctx := context.Background()

	in := finishedTournament(1004)
	in.Players = nil
	in.Game.Name = "Championship Series Event 4 - PLO"
	in.Game.IsSeries = true
	in.Game.GameStartDateTime = time.Date(2023, time.February, 15, 18, 0, 0, 0, time.UTC)
	in.Series = SeriesRef{SeriesName: "Championship Series February 2023"}

	res, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("save series game: %v", err)
	}
	sa := res.SeriesAssignment
	if sa == nil || sa.SeriesID == nil || *sa.SeriesID != "s-champ-2023" {
		t.Fatalf("expected assignment to s-champ-2023, got %+v", sa)
	}
	if sa.Status != game.AssignmentAutoAssigned || sa.Confidence < 0.75 || sa.WasCreated {
		t.Fatalf("unexpected series assignment: %+v", sa)
	}
	all, _ := p.series.ListByTitle(ctx, "t-champ")
	if len(all) != 1 {
		t.Fatalf("no series should be created, found %d", len(all))
	}
	if all[0].EventCount != 13 {
		t.Fatalf("expected event count bumped to 13, got %d", all[0].EventCount)
	}
	if res.RecurringGameAssignment == nil || res.RecurringGameAssignment.Status != game.AssignmentNotApplicable {
		t.Fatalf("series games are not recurring candidates, got %+v", res.RecurringGameAssignment)
	}
}

func TestGameSaver_QueueFailureFailsSave(t *testing.T) {
	t.Parallel()

	queue := gamemock.NewPlayerQueue(t)
	p := newSavePipeline(t, queue)
	ctx := context.Background()

	queue.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))

	res, err := p.saver.Save(ctx, finishedTournament(1005))
	if !errors.Is(err, ErrQueue) {
		t.Fatalf("expected ErrQueue, got %v", err)
	}
	if res.Success || res.PlayerProcessingQueued {
		t.Fatalf("queue failure must fail the save: %+v", res)
	}
	if _, ok, _ := p.games.FindByID(ctx, res.GameID); !ok {
		t.Fatalf("game write happens before the queue decision")
	}
}

func TestGameSaver_ValidationFailure(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	in := finishedTournament(1006)
	in.Game.Name = ""
	in.Source.Type = "FTP"

	res, err := p.saver.Save(context.Background(), in)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if res.Action != SaveValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED, got %s", res.Action)
	}
}

func TestGameSaver_PayloadVenueFeeOverridesVenue(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	in := finishedTournament(1007)
	in.Players = nil
	in.Game.VenueFee = floatPtr(2)

	res, err := p.saver.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	stored, _, _ := p.games.FindByID(context.Background(), res.GameID)
	if stored.VenueFee != 2 {
		t.Fatalf("expected payload fee 2, got %v", stored.VenueFee)
	}
}

func TestGameSaver_LiveGameUpdatesEntriesInline(t *testing.T) {
	t.Parallel()

	queue := gamemock.NewPlayerQueue(t)
	p := newSavePipeline(t, queue)
	ctx := context.Background()

	in := finishedTournament(1008)
	in.Game.GameStatus = game.StatusRunning
	in.Players = testPlayers(10)

	res, err := p.saver.Save(ctx, in)
	if err != nil {
		t.Fatalf("save live game: %v", err)
	}
	if res.PlayerProcessingQueued {
		t.Fatalf("live games must not be queued")
	}
	entries, _ := p.entries.ListByGame(ctx, res.GameID)
	if len(entries) != 10 {
		t.Fatalf("expected 10 live entries, got %d", len(entries))
	}
}

func TestGameSaver_SaveBatchContinuesPastFailures(t *testing.T) {
	t.Parallel()

	p := newSavePipeline(t, nil)
	good := finishedTournament(1009)
	good.Players = nil
	bad := finishedTournament(1010)
	bad.Game.Name = ""

	results := p.saver.SaveBatch(context.Background(), []SaveGameInput{bad, good})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Action != SaveValidationFailed || results[0].Message == "" {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
	if results[1].Action != SaveCreated || !results[1].Success {
		t.Fatalf("unexpected second result: %+v", results[1])
	}
}
