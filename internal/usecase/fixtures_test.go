package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
	"github.com/riskibarqy/kingsroom-ingest/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/id"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/resilience"
)

const testEntityID = "kings"

var testNow = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testEntity() entity.Entity {
	return entity.Entity{
		ID:              testEntityID,
		Name:            "Kings Room",
		DefaultVenueID:  "v-main",
		GameURLTemplate: "https://kingsroom.example/tournament/{id}",
		Active:          true,
	}
}

func testVenues() []venue.Venue {
	return []venue.Venue{
		{ID: "v-main", EntityID: testEntityID, Name: "Kings Room Main", Aliases: []string{"Main Room"}, Fee: 5, Active: true},
		{ID: "v-north", EntityID: testEntityID, Name: "Kings North", Fee: 3, Active: true},
	}
}

func testSeriesRepo() *memory.SeriesRepository {
	start := time.Date(2023, time.January, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.March, 30, 0, 0, 0, 0, time.UTC)
	return memory.NewSeriesRepository(
		[]series.Title{{ID: "t-champ", Title: "Championship Series", Aliases: []string{"Champs"}}},
		[]series.Series{{
			ID:         "s-champ-2023",
			TitleID:    "t-champ",
			EntityID:   testEntityID,
			Name:       "Championship Series 2023",
			Year:       2023,
			StartDate:  &start,
			EndDate:    &end,
			EventCount: 12,
			Status:     series.StatusCompleted,
		}},
	)
}

// savePipeline wires a GameSaver over in-memory stores.
type savePipeline struct {
	games     *memory.GameRepository
	entries   *memory.PlayerEntryRepository
	snapshots *memory.SnapshotRepository
	series    *memory.SeriesRepository
	recurring *memory.RecurringRepository
	urls      *memory.ScrapeURLRepository
	attempts  *memory.ScrapeAttemptRepository
	urlSvc    *ScrapeURLService
	saver     *GameSaver
}

func newSavePipeline(t *testing.T, queue game.PlayerQueue) *savePipeline {
	t.Helper()

	logger := logging.NewNop()
	p := &savePipeline{
		games:     memory.NewGameRepository(),
		entries:   memory.NewPlayerEntryRepository(),
		snapshots: memory.NewSnapshotRepository(),
		series:    testSeriesRepo(),
		recurring: memory.NewRecurringRepository(),
		urls:      memory.NewScrapeURLRepository(),
		attempts:  memory.NewScrapeAttemptRepository(),
	}
	entities := memory.NewEntityRepository([]entity.Entity{testEntity()})
	p.urlSvc = NewScrapeURLService(p.urls, p.attempts, &id.Sequence{Prefix: "url-"}, logger)
	p.urlSvc.now = fixedClock

	seriesRes := NewSeriesResolver(p.series, p.series, &id.Sequence{Prefix: "series-"}, logger)
	seriesRes.now = fixedClock

	p.saver = NewGameSaver(GameSaverDeps{
		Games:         p.games,
		Entries:       p.entries,
		Snapshots:     p.snapshots,
		SeriesRepo:    p.series,
		RecurringRepo: p.recurring,
		Queue:         queue,
		Attempts:      p.urlSvc,
		Venues:        NewVenueResolver(memory.NewVenueRepository(testVenues()), entities, logger),
		Series:        seriesRes,
		Recurring:     NewRecurringResolver(p.recurring, RecurringThresholds{}, logger),
		IDGen:         &id.Sequence{Prefix: "game-"},
	}, GameSaverConfig{
		PlayerEnqueueRetry: resilience.RetryPolicy{MaxAttempts: 1},
		SeriesAutoCreate:   true,
	}, logger)
	p.saver.now = fixedClock
	return p
}

func floatPtr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func intPtr(v int) *int { return &v }

func testPlayers(n int) *game.PlayerList {
	players := make([]game.PlayerResult, 0, n)
	for i := 1; i <= n; i++ {
		players = append(players, game.PlayerResult{Name: fmt.Sprintf("Player %02d", i), Rank: i})
	}
	return &game.PlayerList{AllPlayers: players, TotalUniquePlayers: n, HasCompleteResults: true}
}

// finishedTournament is a FINISHED tournament with 78 unique players and 118 entries.
func finishedTournament(tournamentID int64) SaveGameInput {
	url := fmt.Sprintf("https://kingsroom.example/tournament/%d", tournamentID)
	return SaveGameInput{
		Source: SaveSource{Type: SourceTypeScrape, SourceID: url, EntityID: testEntityID},
		Game: game.Payload{
			TournamentID:       tournamentID,
			SourceURL:          url,
			Name:               "Monday Deepstack $5K GTD",
			GameType:           game.TypeTournament,
			GameStatus:         game.StatusFinished,
			GameStartDateTime:  time.Date(2026, time.February, 23, 19, 0, 0, 0, time.UTC),
			BuyIn:              100,
			Rake:               10,
			GuaranteeAmount:    floatPtr(5000),
			TotalUniquePlayers: 78,
			TotalEntries:       118,
		},
		Players: testPlayers(78),
		Venue:   VenueRef{VenueName: "Kings Room Main"},
	}
}
