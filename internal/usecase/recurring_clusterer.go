package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/naming"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/recurring"
)

type ClusterConfig struct {
	BuyInTolerance       float64 `json:"buyInTolerance"`
	TimeToleranceMinutes int     `json:"timeToleranceMinutes"`
	StructuralThreshold  float64 `json:"structuralThreshold"`
	MinGamesForTemplate  int     `json:"minGamesForTemplate"`
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		BuyInTolerance:       0.5,
		TimeToleranceMinutes: 60,
		StructuralThreshold:  0.7,
		MinGamesForTemplate:  2,
	}
}

func (c ClusterConfig) WithDefaults() ClusterConfig {
	d := DefaultClusterConfig()
	if c.BuyInTolerance <= 0 {
		c.BuyInTolerance = d.BuyInTolerance
	}
	if c.TimeToleranceMinutes <= 0 {
		c.TimeToleranceMinutes = d.TimeToleranceMinutes
	}
	if c.StructuralThreshold <= 0 {
		c.StructuralThreshold = d.StructuralThreshold
	}
	if c.MinGamesForTemplate <= 0 {
		c.MinGamesForTemplate = d.MinGamesForTemplate
	}
	return c
}

// ClusterProposal is a synthesized template plus the games that formed it.
type ClusterProposal struct {
	Template recurring.RecurringGame `json:"template"`
	GameIDs  []string                `json:"gameIds"`
}

type clusterGame struct {
	game         game.Game
	dayOfWeek    string
	startMinutes int
	hasStart     bool
	cleanName    string
}

// ClusterGames synthesizes recurring templates from one venue's history. Series and
// cash games are ignored. The result is deterministic for a given input set.
func ClusterGames(games []game.Game, cfg ClusterConfig) []ClusterProposal {
	cfg = cfg.WithDefaults()

	partitions := make(map[string][]clusterGame)
	for _, g := range games {
		if g.IsSeries || g.GameType == game.TypeCash {
			continue
		}
		cg := clusterGame{game: g, dayOfWeek: gameWeekday(g), cleanName: naming.CleanGameName(g.Name)}
		if !g.GameStartDateTime.IsZero() {
			start := g.GameStartDateTime.UTC()
			cg.startMinutes = start.Hour()*60 + start.Minute()
			cg.hasStart = true
		}
		key := cg.dayOfWeek + "|" + string(g.GameType)
		partitions[key] = append(partitions[key], cg)
	}

	keys := make([]string, 0, len(partitions))
	for k := range partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []ClusterProposal
	for _, key := range keys {
		members := partitions[key]
		sort.Slice(members, func(i, j int) bool {
			if !members[i].game.GameStartDateTime.Equal(members[j].game.GameStartDateTime) {
				return members[i].game.GameStartDateTime.Before(members[j].game.GameStartDateTime)
			}
			return members[i].game.ID < members[j].game.ID
		})
		out = append(out, clusterPartition(members, cfg)...)
	}
	return out
}

func clusterPartition(members []clusterGame, cfg ClusterConfig) []ClusterProposal {
	uf := newUnionFind(len(members))
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if structuralScore(members[i], members[j], cfg) >= cfg.StructuralThreshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]clusterGame)
	order := make([]int, 0)
	for i, m := range members {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], m)
	}

	byName := make(map[string][]clusterGame)
	names := make([]string, 0)
	for _, root := range order {
		cluster := groups[root]
		if len(cluster) < cfg.MinGamesForTemplate {
			continue
		}
		name := clusterName(cluster)
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], cluster...)
	}

	out := make([]ClusterProposal, 0, len(names))
	for _, name := range names {
		out = append(out, buildProposal(name, byName[name]))
	}
	return out
}

// structuralScore compares two games on buy-in and start time.
func structuralScore(a, b clusterGame, cfg ClusterConfig) float64 {
	buyInAvailable := a.game.BuyIn > 0 || b.game.BuyIn > 0
	timeAvailable := a.hasStart && b.hasStart

	buyInMatch := buyInsSimilar(a.game.BuyIn, b.game.BuyIn, cfg.BuyInTolerance)
	timeMatch := timesSimilar(a, b, cfg.TimeToleranceMinutes)

	switch {
	case buyInAvailable && timeAvailable:
		switch {
		case buyInMatch && timeMatch:
			return 1.0
		case buyInMatch || timeMatch:
			return 0.4
		}
		return 0
	case buyInAvailable:
		if buyInMatch {
			return 0.8
		}
		return 0
	case timeAvailable:
		if timeMatch {
			return 0.8
		}
		return 0
	}
	return 1.0
}

func buyInsSimilar(a, b, tolerance float64) bool {
	if a <= 0 && b <= 0 {
		return true
	}
	if a <= 0 || b <= 0 {
		return false
	}
	return math.Max(a, b)/math.Min(a, b) <= 1+tolerance
}

func timesSimilar(a, b clusterGame, tolerance int) bool {
	if !a.hasStart && !b.hasStart {
		return true
	}
	if !a.hasStart || !b.hasStart {
		return false
	}
	return clockDistance(a.startMinutes, b.startMinutes) <= tolerance
}

func clockDistance(a, b int) int {
	d := abs(a - b)
	return min(d, 1440-d)
}

var clusterStopWords = map[string]struct{}{
	"the": {}, "and": {}, "with": {}, "event": {}, "tournament": {}, "poker": {}, "night": {},
}

// clusterName prefers the most common cleaned name and falls back to a
// distinctive identifier derived from guarantee, common words or buy-in tier.
func clusterName(cluster []clusterGame) string {
	counts := make(map[string]int)
	for _, m := range cluster {
		if m.cleanName != "" {
			counts[m.cleanName]++
		}
	}
	if name := mostCommon(counts); name != "" {
		return naming.TitleCase(name)
	}

	day := ""
	if len(cluster) > 0 && cluster[0].dayOfWeek != "" {
		day = naming.TitleCase(strings.ToLower(cluster[0].dayOfWeek)) + " "
	}
	if guarantee := averageGuarantee(cluster); guarantee != nil && *guarantee > 0 {
		return fmt.Sprintf("%s$%s GTD", day, compactAmount(*guarantee))
	}

	words := make(map[string]int)
	for _, m := range cluster {
		for _, w := range strings.Fields(naming.NormalizeGameName(m.game.Name)) {
			if _, stop := clusterStopWords[w]; stop || len(w) < 3 {
				continue
			}
			words[w]++
		}
	}
	if w := mostCommon(words); w != "" && words[w] > 1 {
		return day + naming.TitleCase(w)
	}
	return fmt.Sprintf("%s$%s Tournament", day, compactAmount(meanBuyIn(cluster)))
}

func mostCommon(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func compactAmount(v float64) string {
	switch {
	case v >= 1000 && math.Mod(v, 1000) == 0:
		return fmt.Sprintf("%.0fK", v/1000)
	case v >= 1000:
		return fmt.Sprintf("%.1fK", v/1000)
	}
	return fmt.Sprintf("%.0f", v)
}

func buildProposal(name string, cluster []clusterGame) ClusterProposal {
	starts := make([]int, 0, len(cluster))
	variants := make(map[string]int)
	ids := make([]string, 0, len(cluster))
	var first, last time.Time
	for _, m := range cluster {
		ids = append(ids, m.game.ID)
		if m.hasStart {
			starts = append(starts, m.startMinutes)
		}
		if m.game.GameVariant != "" {
			variants[string(m.game.GameVariant)]++
		}
		at := m.game.GameStartDateTime
		if first.IsZero() || at.Before(first) {
			first = at
		}
		if at.After(last) {
			last = at
		}
	}
	sort.Strings(ids)

	tmpl := recurring.RecurringGame{
		Name:             name,
		DayOfWeek:        cluster[0].dayOfWeek,
		TypicalBuyIn:     math.Round(meanBuyIn(cluster)*100) / 100,
		TypicalGuarantee: averageGuarantee(cluster),
		GameVariant:      game.Variant(mostCommon(variants)),
		GameType:         cluster[0].game.GameType,
		Frequency:        detectFrequency(cluster),
		TotalOccurrences: len(cluster),
		IsActive:         true,
		Confidence:       clusterConfidence(name, cluster),
	}
	if tmpl.GameType == "" {
		tmpl.GameType = game.TypeTournament
	}
	if len(starts) > 0 {
		tmpl.TypicalStartTime = recurring.FormatClock(medianInt(starts))
	}
	if !first.IsZero() {
		f, l := first, last
		tmpl.FirstSeenDate = &f
		tmpl.LastSeenDate = &l
	}
	return ClusterProposal{Template: tmpl, GameIDs: ids}
}

func meanBuyIn(cluster []clusterGame) float64 {
	if len(cluster) == 0 {
		return 0
	}
	var sum float64
	for _, m := range cluster {
		sum += m.game.BuyIn
	}
	return sum / float64(len(cluster))
}

func averageGuarantee(cluster []clusterGame) *float64 {
	var sum float64
	n := 0
	for _, m := range cluster {
		if m.game.HasGuarantee && m.game.GuaranteeAmount > 0 {
			sum += m.game.GuaranteeAmount
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*100) / 100
	return &avg
}

func medianInt(values []int) int {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// detectFrequency reads the median gap between distinct play dates.
func detectFrequency(cluster []clusterGame) recurring.Frequency {
	days := make(map[string]time.Time)
	for _, m := range cluster {
		if m.game.GameStartDateTime.IsZero() {
			continue
		}
		d := m.game.GameStartDateTime.UTC().Truncate(24 * time.Hour)
		days[d.Format(time.DateOnly)] = d
	}
	if len(days) < 2 {
		return recurring.FrequencyIrregular
	}
	dates := make([]time.Time, 0, len(days))
	for _, d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	gaps := make([]int, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, int(dates[i].Sub(dates[i-1]).Hours()/24))
	}
	switch median := medianInt(gaps); {
	case median <= 9:
		return recurring.FrequencyWeekly
	case median <= 18:
		return recurring.FrequencyBiweekly
	case median >= 25 && median <= 35:
		return recurring.FrequencyMonthly
	}
	return recurring.FrequencyIrregular
}

// clusterConfidence is 0.85 plus up to 0.10 for how consistently members carry the template name.
func clusterConfidence(name string, cluster []clusterGame) float64 {
	target := naming.CleanGameName(name)
	if target == "" || len(cluster) == 0 {
		return 0.85
	}
	var sum float64
	for _, m := range cluster {
		sum += naming.Dice(m.cleanName, target)
	}
	return math.Min(0.95, 0.85+0.10*sum/float64(len(cluster)))
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
