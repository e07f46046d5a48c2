package tournamentsite

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrape"
)

const finishedPage = `<!doctype html>
<html><head><title>Monday Madness | Kings Room</title></head>
<body>
<div class="tournament" data-tournament-id="4521">
  <h1 class="tournament-name">Monday Madness $100 NLHE</h1>
  <span class="tournament-status">Finished</span>
  <dl class="tournament-details">
    <dt>Venue</dt><dd>Kings Room Main</dd>
    <dt>Start</dt><dd>2024-03-04 19:00</dd>
    <dt>Buy-in</dt><dd>$100 + $10</dd>
    <dt>Guarantee</dt><dd>$5,000</dd>
    <dt>Entries</dt><dd>118</dd>
    <dt>Players</dt><dd>78</dd>
    <dt>Add-ons:</dt><dd>0</dd>
  </dl>
  <table class="results">
    <thead><tr><th>#</th><th>Player</th><th>Prize</th></tr></thead>
    <tbody>
      <tr><td class="rank">1</td><td class="player">Alice  Smith</td><td class="prize">$2,500.50</td><td class="points">120</td></tr>
      <tr><td class="rank">2</td><td class="player">Bob Jones</td><td class="prize">$1,500</td></tr>
      <tr class="qualified"><td class="rank">3</td><td class="player">Cara Lee</td><td class="prize">Ticket</td></tr>
    </tbody>
  </table>
</div>
</body></html>`

func TestParser_FinishedTournament(t *testing.T) {
	t.Parallel()

	sydney := time.FixedZone("AEDT", 11*60*60)
	res, err := NewParser(sydney).Parse(context.Background(), []byte(finishedPage), "https://kingsroom.example/tournament/4521")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Status != scrape.PageOK {
		t.Fatalf("status = %s", res.Status)
	}

	g := res.Game
	if g.TournamentID != 4521 || g.Name != "Monday Madness $100 NLHE" {
		t.Fatalf("unexpected identity: %d %q", g.TournamentID, g.Name)
	}
	if g.GameStatus != game.StatusFinished || g.GameType != game.TypeTournament || g.GameVariant != game.VariantNLHE {
		t.Fatalf("unexpected classification: %s %s %s", g.GameStatus, g.GameType, g.GameVariant)
	}
	wantStart := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	if !g.GameStartDateTime.Equal(wantStart) {
		t.Fatalf("start = %s, want %s", g.GameStartDateTime, wantStart)
	}
	if g.BuyIn != 100 || g.Rake != 10 {
		t.Fatalf("buy-in = %v + %v", g.BuyIn, g.Rake)
	}
	if g.GuaranteeAmount == nil || *g.GuaranteeAmount != 5000 {
		t.Fatalf("guarantee = %v", g.GuaranteeAmount)
	}
	if g.TotalEntries != 118 || g.TotalUniquePlayers != 78 {
		t.Fatalf("entries=%d players=%d", g.TotalEntries, g.TotalUniquePlayers)
	}
	if !g.IsRegular || g.IsSeries || g.IsSatellite {
		t.Fatalf("unexpected flags: regular=%v series=%v satellite=%v", g.IsRegular, g.IsSeries, g.IsSatellite)
	}
	if res.VenueName != "Kings Room Main" {
		t.Fatalf("venue = %q", res.VenueName)
	}

	players := res.Players
	if len(players.AllPlayers) != 3 || players.TotalUniquePlayers != 3 || !players.HasCompleteResults {
		t.Fatalf("unexpected players: %+v", players)
	}
	if players.AllPlayers[0].Name != "Alice Smith" || players.AllPlayers[0].Winnings != 2500.5 || players.AllPlayers[0].Points != 120 {
		t.Fatalf("unexpected winner: %+v", players.AllPlayers[0])
	}
	if !players.AllPlayers[2].IsQualification {
		t.Fatalf("ticket winner must be a qualification")
	}
	if g.TotalPrizesPaid != 4000.5 {
		t.Fatalf("prizes paid = %v", g.TotalPrizesPaid)
	}
}

func TestParser_PageStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want scrape.PageStatus
	}{
		{name: "empty body", body: "   ", want: scrape.PageBlank},
		{name: "no tournament block", body: `<html><body><p>maintenance</p></body></html>`, want: scrape.PageBlank},
		{name: "not found marker", body: `<html><body><div class="not-found">No such tournament</div></body></html>`, want: scrape.PageNotFound},
		{name: "not found title", body: `<html><head><title>Tournament Not Found</title></head><body></body></html>`, want: scrape.PageNotFound},
		{
			name: "unpublished",
			body: `<html><body><div class="tournament" data-tournament-id="9"><span class="tournament-status">Not Published</span></div></body></html>`,
			want: scrape.PageNotPublished,
		},
	}

	parser := NewParser(nil)
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := parser.Parse(context.Background(), []byte(tc.body), "https://kingsroom.example/tournament/9")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if res.Status != tc.want {
				t.Fatalf("status = %s, want %s", res.Status, tc.want)
			}
		})
	}
}

func TestParser_MissingStartTimeIsAnError(t *testing.T) {
	t.Parallel()

	body := `<div class="tournament"><h1 class="tournament-name">Friday PLO</h1><span class="tournament-status">Scheduled</span></div>`
	if _, err := NewParser(nil).Parse(context.Background(), []byte(body), "https://kingsroom.example/tournament/12"); err == nil {
		t.Fatalf("expected error for missing start time")
	}
}

func TestParseHelpers(t *testing.T) {
	t.Parallel()

	variants := map[string]game.Variant{
		"No Limit Hold'em":  game.VariantNLHE,
		"Pot Limit Omaha":   game.VariantPLO,
		"PLO Hi-Lo":         game.VariantPLOHiLo,
		"6 Card PLO":        game.VariantPLO6,
		"Limit Hold'em":     game.VariantLHE,
		"Dealer's Choice":   game.VariantMixed,
		"Open Face Chinese": game.VariantOther,
	}
	for raw, want := range variants {
		if got := parseVariant(raw, ""); got != want {
			t.Fatalf("parseVariant(%q) = %s, want %s", raw, got, want)
		}
	}

	statuses := map[string]game.Status{
		"Late Reg Open": game.StatusRegistering,
		"In Progress":   game.StatusRunning,
		"Clock Stopped": game.StatusClockStopped,
		"Completed":     game.StatusFinished,
		"Cancelled":     game.StatusCancelled,
		"Upcoming":      game.StatusScheduled,
		"":              game.StatusUnknown,
	}
	for raw, want := range statuses {
		if got := parseGameStatus(raw); got != want {
			t.Fatalf("parseGameStatus(%q) = %s, want %s", raw, got, want)
		}
	}

	if buyIn, rake := parseBuyIn("$1,100 + $100"); buyIn != 1100 || rake != 100 {
		t.Fatalf("parseBuyIn = %v %v", buyIn, rake)
	}
	if buyIn, rake := parseBuyIn("Freeroll"); buyIn != 0 || rake != 0 {
		t.Fatalf("freeroll buy-in = %v %v", buyIn, rake)
	}
	if id := TournamentIDFromURL("https://kingsroom.example/live?id=8812&tab=results"); id != 8812 {
		t.Fatalf("TournamentIDFromURL = %d", id)
	}
}
