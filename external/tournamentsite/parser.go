package tournamentsite

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrape"
)

var (
	moneyRegex      = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
	intRegex        = regexp.MustCompile(`\d[\d,]*`)
	tournamentIDURL = regexp.MustCompile(`(?:[?&]id=|/tournament/)(\d+)`)
	satelliteRegex  = regexp.MustCompile(`(?i)\b(satellite|sat|qualifier)\b`)
	seriesRegex     = regexp.MustCompile(`(?i)\b(series|championship|festival|main event)\b`)
)

var startLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"02/01/2006 15:04",
	"02/01/2006 3:04 PM",
	"Mon 2 Jan 2006 15:04",
	"Monday 2 January 2006 3:04 PM",
	"2 January 2006 3:04 PM",
}

// Parser extracts tournament data from the site's tournament page markup.
// Start times are read in Location.
type Parser struct {
	location *time.Location
}

var _ scrape.Parser = (*Parser)(nil)

func NewParser(location *time.Location) *Parser {
	if location == nil {
		location = time.UTC
	}
	return &Parser{location: location}
}

func (p *Parser) Parse(_ context.Context, body []byte, sourceURL string) (scrape.ParseResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return scrape.ParseResult{Status: scrape.PageBlank}, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scrape.ParseResult{}, crerr.Wrap(err, "parse tournament html")
	}

	if isNotFoundPage(doc) {
		return scrape.ParseResult{Status: scrape.PageNotFound}, nil
	}
	root := doc.Find(".tournament").First()
	if root.Length() == 0 {
		return scrape.ParseResult{Status: scrape.PageBlank}, nil
	}

	details := readDetails(root)
	name := cleanText(root.Find(".tournament-name").First().Text())
	statusText := cleanText(root.Find(".tournament-status").First().Text())
	if statusText == "" {
		statusText = details["status"]
	}

	result := scrape.ParseResult{
		Status:     scrape.PageOK,
		VenueName:  details["venue"],
		SeriesName: details["series"],
	}
	if name == "" || isUnpublishedStatus(statusText) {
		result.Status = scrape.PageNotPublished
	}

	payload := game.Payload{
		SourceURL:  sourceURL,
		Name:       name,
		GameType:   parseGameType(details["type"], name),
		GameStatus: parseGameStatus(statusText),
		SeriesName: details["series"],
	}
	if raw, ok := root.Attr("data-tournament-id"); ok {
		payload.TournamentID, _ = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	}
	if payload.TournamentID == 0 {
		payload.TournamentID = TournamentIDFromURL(sourceURL)
	}
	payload.GameVariant = parseVariant(firstNonEmpty(details["game"], details["variant"]), name)

	if start, ok := p.parseTime(firstNonEmpty(details["start"], details["date"])); ok {
		payload.GameStartDateTime = start
	}
	if end, ok := p.parseTime(details["end"]); ok {
		payload.GameEndDateTime = &end
	}
	if payload.GameStartDateTime.IsZero() && result.Status == scrape.PageOK {
		return scrape.ParseResult{}, crerr.Newf("tournament %d has no readable start time", payload.TournamentID)
	}

	payload.BuyIn, payload.Rake = parseBuyIn(details["buy-in"])
	if fee, ok := parseMoney(details["venue fee"]); ok {
		payload.VenueFee = &fee
	}
	if guarantee, ok := parseMoney(details["guarantee"]); ok && guarantee > 0 {
		payload.GuaranteeAmount = &guarantee
	}
	payload.TotalEntries = parseInt(firstNonEmpty(details["entries"], details["total entries"]))
	payload.TotalUniquePlayers = parseInt(firstNonEmpty(details["players"], details["unique players"]))
	payload.TotalAddons = parseInt(details["add-ons"])
	if rebuys := details["rebuys"]; rebuys != "" {
		n := parseInt(rebuys)
		payload.TotalRebuys = &n
	}
	if initial := details["initial entries"]; initial != "" {
		n := parseInt(initial)
		payload.TotalInitialEntries = &n
	}

	players := readResults(root)
	if payload.TotalUniquePlayers == 0 {
		payload.TotalUniquePlayers = players.TotalUniquePlayers
	}
	if payload.TotalEntries < payload.TotalUniquePlayers {
		payload.TotalEntries = payload.TotalUniquePlayers
	}
	if paid, ok := parseMoney(details["prizes paid"]); ok {
		payload.TotalPrizesPaid = paid
	} else {
		payload.TotalPrizesPaid = players.TotalPrizesPaid
	}
	players.HasCompleteResults = payload.GameStatus.IsTerminal() && len(players.AllPlayers) > 0

	payload.IsSatellite = satelliteRegex.MatchString(name)
	payload.IsSeries = payload.SeriesName != "" || seriesRegex.MatchString(name)
	payload.IsRegular = !payload.IsSeries && !payload.IsSatellite

	result.Game = payload
	result.Players = players
	return result, nil
}

// TournamentIDFromURL reads the numeric tournament id from a page url, or 0.
func TournamentIDFromURL(raw string) int64 {
	m := tournamentIDURL.FindStringSubmatch(raw)
	if len(m) < 2 {
		return 0
	}
	id, _ := strconv.ParseInt(m[1], 10, 64)
	return id
}

func isNotFoundPage(doc *goquery.Document) bool {
	if doc.Find(".not-found, #tournament-not-found").Length() > 0 {
		return true
	}
	title := strings.ToLower(cleanText(doc.Find("title").First().Text()))
	return strings.Contains(title, "not found")
}

// readDetails flattens the details list into lowercase label -> value.
func readDetails(root *goquery.Selection) map[string]string {
	out := make(map[string]string)
	root.Find(".tournament-details dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(strings.TrimSuffix(cleanText(dt.Text()), ":"))
		value := cleanText(dt.NextFiltered("dd").Text())
		if label != "" && value != "" {
			out[label] = value
		}
	})
	return out
}

func readResults(root *goquery.Selection) game.PlayerList {
	list := game.PlayerList{}
	seen := make(map[string]struct{})
	root.Find("table.results tbody tr").Each(func(_ int, row *goquery.Selection) {
		name := cleanText(row.Find(".player").Text())
		if name == "" {
			return
		}
		res := game.PlayerResult{
			Name: name,
			Rank: parseInt(row.Find(".rank").Text()),
		}
		if prize, ok := parseMoney(row.Find(".prize").Text()); ok {
			res.Winnings = prize
		}
		if pts, ok := parseMoney(row.Find(".points").Text()); ok {
			res.Points = pts
		}
		res.Rebuys = parseInt(row.Find(".rebuys").Text())
		res.Addons = parseInt(row.Find(".addons").Text())
		res.IsQualification = row.HasClass("qualified") || strings.Contains(strings.ToLower(row.Find(".prize").Text()), "ticket")

		list.AllPlayers = append(list.AllPlayers, res)
		list.TotalPrizesPaid += res.Winnings
		if _, dup := seen[strings.ToLower(name)]; !dup {
			seen[strings.ToLower(name)] = struct{}{}
			list.TotalUniquePlayers++
		}
	})
	return list
}

func (p *Parser) parseTime(raw string) (time.Time, bool) {
	raw = cleanText(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.location); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isUnpublishedStatus(raw string) bool {
	s := strings.ToLower(raw)
	return strings.Contains(s, "not published") || strings.Contains(s, "unpublished") || strings.Contains(s, "hidden")
}

func parseGameStatus(raw string) game.Status {
	s := strings.ToLower(cleanText(raw))
	switch {
	case s == "":
		return game.StatusUnknown
	case isUnpublishedStatus(s):
		return game.StatusNotPublished
	case strings.Contains(s, "clock stopped") || strings.Contains(s, "paused"):
		return game.StatusClockStopped
	case strings.Contains(s, "registering") || strings.Contains(s, "late reg"):
		return game.StatusRegistering
	case strings.Contains(s, "running") || strings.Contains(s, "in progress") || strings.Contains(s, "live"):
		return game.StatusRunning
	case strings.Contains(s, "finished") || strings.Contains(s, "complete"):
		return game.StatusFinished
	case strings.Contains(s, "cancel"):
		return game.StatusCancelled
	case strings.Contains(s, "scheduled") || strings.Contains(s, "upcoming") || strings.Contains(s, "announced"):
		return game.StatusScheduled
	}
	return game.ParseStatus(s)
}

func parseGameType(raw, name string) game.Type {
	s := strings.ToLower(raw + " " + name)
	if strings.Contains(s, "cash game") || strings.Contains(strings.ToLower(raw), "cash") {
		return game.TypeCash
	}
	return game.TypeTournament
}

func parseVariant(raw, name string) game.Variant {
	s := strings.ToUpper(firstNonEmpty(raw, name))
	switch {
	case strings.Contains(s, "HI-LO") || strings.Contains(s, "HILO") || strings.Contains(s, "HI/LO"):
		return game.VariantPLOHiLo
	case strings.Contains(s, "PLO6") || strings.Contains(s, "6 CARD") || strings.Contains(s, "6-CARD"):
		return game.VariantPLO6
	case strings.Contains(s, "PLO5") || strings.Contains(s, "5 CARD") || strings.Contains(s, "5-CARD"):
		return game.VariantPLO5
	case strings.Contains(s, "PLO") || strings.Contains(s, "OMAHA"):
		return game.VariantPLO
	case strings.Contains(s, "MIXED") || strings.Contains(s, "HORSE") || strings.Contains(s, "DEALER"):
		return game.VariantMixed
	case strings.Contains(s, "NLH") || strings.Contains(s, "NO LIMIT") || strings.Contains(s, "NO-LIMIT"):
		return game.VariantNLHE
	case strings.Contains(s, "LIMIT HOLD") || strings.Contains(s, "LHE"):
		return game.VariantLHE
	case strings.Contains(s, "HOLD"):
		return game.VariantNLHE
	case raw == "":
		return game.VariantNLHE
	}
	return game.VariantOther
}

// parseBuyIn reads "$100 + $10" as buy-in 100 and rake 10; a single amount has no rake.
func parseBuyIn(raw string) (float64, float64) {
	amounts := moneyRegex.FindAllString(raw, -1)
	values := make([]float64, 0, len(amounts))
	for _, a := range amounts {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(a, ",", ""), 64); err == nil {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	return values[0], values[1]
}

func parseMoney(raw string) (float64, bool) {
	m := moneyRegex.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(raw string) int {
	m := intRegex.FindString(raw)
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return v
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
