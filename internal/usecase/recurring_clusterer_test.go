package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
)

// mondayGame starts on the n-th Monday from 2026-01-05 at hh:mm.
func mondayGame(id, name string, week int, hh, mm int, buyIn float64) game.Game {
	start := time.Date(2026, time.January, 5, hh, mm, 0, 0, time.UTC).AddDate(0, 0, 7*week)
	return game.Game{
		ID:                id,
		EntityID:          testEntityID,
		VenueID:           "v-main",
		Name:              name,
		GameType:          game.TypeTournament,
		GameVariant:       game.VariantNLHE,
		GameStatus:        game.StatusFinished,
		GameStartDateTime: start,
		BuyIn:             buyIn,
	}
}

func mondayHistory() []game.Game {
	low := []float64{100, 110, 105, 100, 110, 105, 100}
	high := []float64{300, 310, 300, 310, 300}
	games := make([]game.Game, 0, len(low)+len(high))
	for i, b := range low {
		games = append(games, mondayGame(fmt.Sprintf("low-%d", i), "Monday Deepstack", i, 19, (i%3)*5, b))
	}
	for i, b := range high {
		games = append(games, mondayGame(fmt.Sprintf("high-%d", i), "Monday High Roller", i, 21, 0, b))
	}
	return games
}

func TestClusterGames_SplitsByBuyInAndStartTime(t *testing.T) {
	t.Parallel()

	proposals := ClusterGames(mondayHistory(), ClusterConfig{})
	if len(proposals) != 2 {
		t.Fatalf("expected 2 templates, got %d: %+v", len(proposals), proposals)
	}

	byName := make(map[string]ClusterProposal, len(proposals))
	for _, p := range proposals {
		byName[p.Template.Name] = p
	}
	low, ok := byName["Deepstack"]
	if !ok {
		t.Fatalf("missing low buy-in template, got %v", byName)
	}
	high, ok := byName["High Roller"]
	if !ok {
		t.Fatalf("missing high buy-in template, got %v", byName)
	}

	if len(low.GameIDs) != 7 || len(high.GameIDs) != 5 {
		t.Fatalf("unexpected membership: low=%v high=%v", low.GameIDs, high.GameIDs)
	}
	if low.Template.TypicalStartTime != "19:05" || high.Template.TypicalStartTime != "21:00" {
		t.Fatalf("unexpected start times: low=%s high=%s", low.Template.TypicalStartTime, high.Template.TypicalStartTime)
	}
	if low.Template.TypicalBuyIn < 100 || low.Template.TypicalBuyIn > 110 {
		t.Fatalf("unexpected low buy-in %v", low.Template.TypicalBuyIn)
	}
	if high.Template.TypicalBuyIn != 304 {
		t.Fatalf("unexpected high buy-in %v", high.Template.TypicalBuyIn)
	}
	for _, p := range proposals {
		tmpl := p.Template
		if tmpl.DayOfWeek != "MONDAY" || tmpl.Frequency != recurring.FrequencyWeekly {
			t.Fatalf("unexpected schedule for %s: day=%s frequency=%s", tmpl.Name, tmpl.DayOfWeek, tmpl.Frequency)
		}
		if tmpl.Confidence < 0.85 || tmpl.Confidence > 0.95 {
			t.Fatalf("confidence out of range for %s: %v", tmpl.Name, tmpl.Confidence)
		}
		if tmpl.TotalOccurrences != len(p.GameIDs) || tmpl.FirstSeenDate == nil || tmpl.LastSeenDate == nil {
			t.Fatalf("unexpected bookkeeping for %s: %+v", tmpl.Name, tmpl)
		}
	}
}

func TestClusterGames_IgnoresSeriesCashAndSingletons(t *testing.T) {
	t.Parallel()

	games := mondayHistory()[:2]
	series := mondayGame("series-1", "Championship Series Event 3", 3, 19, 0, 100)
	series.IsSeries = true
	cash := mondayGame("cash-1", "Monday Deepstack", 4, 19, 0, 100)
	cash.GameType = game.TypeCash
	lonely := mondayGame("lonely", "Midnight Bounty", 0, 2, 0, 50)
	games = append(games, series, cash, lonely)

	proposals := ClusterGames(games, ClusterConfig{})
	if len(proposals) != 1 {
		t.Fatalf("expected a single template, got %+v", proposals)
	}
	ids := proposals[0].GameIDs
	if len(ids) != 2 || ids[0] != "low-0" || ids[1] != "low-1" {
		t.Fatalf("unexpected members: %v", ids)
	}
}

func TestClusterGames_UnionIsTransitive(t *testing.T) {
	t.Parallel()

	// 100~140 and 140~190 are within tolerance; 100 and 190 are not, yet all three share a cluster
	games := []game.Game{
		mondayGame("a", "Bounty Builder", 0, 19, 0, 100),
		mondayGame("b", "Bounty Builder", 1, 19, 0, 140),
		mondayGame("c", "Bounty Builder", 2, 19, 0, 190),
	}
	proposals := ClusterGames(games, ClusterConfig{})
	if len(proposals) != 1 || len(proposals[0].GameIDs) != 3 {
		t.Fatalf("expected one cluster of three, got %+v", proposals)
	}
}

func TestClusterGames_MergesClustersSharingAName(t *testing.T) {
	t.Parallel()

	games := []game.Game{
		mondayGame("a", "Monday Madness", 0, 12, 0, 50),
		mondayGame("b", "Monday Madness", 1, 12, 0, 50),
		mondayGame("c", "Monday Madness", 2, 20, 0, 200),
		mondayGame("d", "Monday Madness", 3, 20, 0, 200),
	}
	proposals := ClusterGames(games, ClusterConfig{})
	if len(proposals) != 1 || len(proposals[0].GameIDs) != 4 {
		t.Fatalf("expected clusters named alike to merge, got %+v", proposals)
	}
}

func TestStructuralScore(t *testing.T) {
	t.Parallel()

	cfg := DefaultClusterConfig()
	at := func(buyIn float64, hhmm int, hasStart bool) clusterGame {
		return clusterGame{game: game.Game{BuyIn: buyIn}, startMinutes: hhmm, hasStart: hasStart}
	}
	cases := []struct {
		name string
		a, b clusterGame
		want float64
	}{
		{name: "both match", a: at(100, 1140, true), b: at(110, 1170, true), want: 1.0},
		{name: "buy-in only", a: at(100, 1140, true), b: at(110, 1300, true), want: 0.4},
		{name: "neither", a: at(100, 1140, true), b: at(300, 1300, true), want: 0},
		{name: "no start times", a: at(100, 0, false), b: at(120, 0, false), want: 0.8},
		{name: "no buy-ins", a: at(0, 1140, true), b: at(0, 1150, true), want: 0.8},
		{name: "nothing to compare", a: at(0, 0, false), b: at(0, 0, false), want: 1.0},
		{name: "wraps midnight", a: at(50, 1430, true), b: at(50, 20, true), want: 1.0},
	}
	for _, tc := range cases {
		if got := structuralScore(tc.a, tc.b, cfg); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestDetectFrequency(t *testing.T) {
	t.Parallel()

	every := func(days, n int) []clusterGame {
		out := make([]clusterGame, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, clusterGame{game: game.Game{GameStartDateTime: time.Date(2026, 1, 1, 19, 0, 0, 0, time.UTC).AddDate(0, 0, i*days)}})
		}
		return out
	}
	cases := []struct {
		days int
		want recurring.Frequency
	}{
		{7, recurring.FrequencyWeekly},
		{14, recurring.FrequencyBiweekly},
		{28, recurring.FrequencyMonthly},
		{21, recurring.FrequencyIrregular},
	}
	for _, tc := range cases {
		if got := detectFrequency(every(tc.days, 4)); got != tc.want {
			t.Fatalf("every %d days: got %s want %s", tc.days, got, tc.want)
		}
	}
	if got := detectFrequency(every(7, 1)); got != recurring.FrequencyIrregular {
		t.Fatalf("single date: got %s", got)
	}
}
