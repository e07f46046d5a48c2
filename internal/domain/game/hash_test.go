package game

import (
	"testing"
	"time"
)

func sampleGame() Game {
	seriesID := "s-1"
	return Game{
		ID:                        "g-1",
		EntityID:                  "e1",
		TournamentID:              1001,
		SourceURL:                 "https://example.test/t?id=1001",
		Name:                      "Monday Deepstack",
		GameType:                  TypeTournament,
		GameVariant:               VariantNLHE,
		GameStatus:                StatusFinished,
		GameStartDateTime:         time.Date(2024, 3, 4, 19, 0, 0, 0, time.UTC),
		BuyIn:                     100,
		Rake:                      10,
		TotalUniquePlayers:        78,
		TotalEntries:              118,
		VenueID:                   "v1",
		VenueAssignmentStatus:     AssignmentAutoAssigned,
		VenueAssignmentConfidence: 0.95,
		TournamentSeriesID:        &seriesID,
	}
}

func TestContentHashIgnoresNonMeaningfulFields(t *testing.T) {
	t.Parallel()

	base := sampleGame()
	h1, err := ContentHash(base)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	mutated := base
	mutated.UpdatedAt = time.Now()
	mutated.CreatedAt = time.Now()
	mutated.LastChangedAt = time.Now()
	mutated.Version = 9
	mutated.VenueAssignmentConfidence = 0.5
	mutated.SeriesAssignmentConfidence = 0.2
	mutated.Keys = DeriveKeys(KeyInputFor(base))
	mutated.ContentHash = "stale"
	now := time.Now()
	mutated.DataChangedAt = &now

	h2, err := ContentHash(mutated)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("non-meaningful change altered hash: %s vs %s", h1, h2)
	}
	if len(h1) != hashHexLength {
		t.Fatalf("unexpected hash length %d", len(h1))
	}
}

func TestContentHashDetectsMeaningfulChanges(t *testing.T) {
	t.Parallel()

	base := sampleGame()
	h0, _ := ContentHash(base)

	mutations := map[string]func(g *Game){
		"name":      func(g *Game) { g.Name = "Monday Deepstack II" },
		"status":    func(g *Game) { g.GameStatus = StatusCompleted },
		"start":     func(g *Game) { g.GameStartDateTime = g.GameStartDateTime.Add(time.Minute) },
		"buyIn":     func(g *Game) { g.BuyIn = 101 },
		"entries":   func(g *Game) { g.TotalEntries++ },
		"venue":     func(g *Game) { g.VenueID = "v2" },
		"recurring": func(g *Game) { id := "r-1"; g.RecurringGameID = &id },
		"satellite": func(g *Game) { g.IsSatellite = true },
	}
	for name, mutate := range mutations {
		g := base
		mutate(&g)
		h, _ := ContentHash(g)
		if h == h0 {
			t.Fatalf("mutation %s did not change hash", name)
		}
	}
}

func TestContentHashNormalization(t *testing.T) {
	t.Parallel()

	a := sampleGame()
	b := sampleGame()
	b.GameStartDateTime = a.GameStartDateTime.In(time.FixedZone("X", 3600))
	b.BuyIn = 100.001
	empty := ""
	a.ParentGameID = nil
	b.ParentGameID = &empty

	ha, _ := ContentHash(a)
	hb, _ := ContentHash(b)
	if ha != hb {
		t.Fatalf("equivalent games hashed differently")
	}
}

func TestDetectChanges(t *testing.T) {
	t.Parallel()

	prev := sampleGame()
	next := prev
	next.TotalEntries = 120
	next.GameStatus = StatusCompleted

	changed, fields, err := DetectChanges(prev, next)
	if err != nil {
		t.Fatalf("detect changes: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	if len(fields) != 2 || fields[0] != FieldGameStatus || fields[1] != FieldTotalEntries {
		t.Fatalf("unexpected fields %v", fields)
	}

	changed, fields, _ = DetectChanges(prev, prev)
	if changed || len(fields) != 0 {
		t.Fatalf("expected no change, got %v %v", changed, fields)
	}
}
