package game

import "math"

// FinancialInput is the scraped entry counts and money fields of a game.
// Nil pointers mean the source did not publish the value.
type FinancialInput struct {
	BuyIn               float64
	Rake                float64
	GuaranteeAmount     *float64
	TotalUniquePlayers  int
	TotalInitialEntries *int
	TotalEntries        int
	TotalRebuys         *int
	TotalAddons         int
	ConsolidationType   ConsolidationType
}

type Financials struct {
	TotalUniquePlayers  int
	TotalInitialEntries int
	TotalEntries        int
	TotalRebuys         int
	TotalAddons         int

	HasGuarantee                 bool
	GuaranteeAmount              float64
	RakeRevenue                  float64
	PrizepoolPlayerContributions float64
	PrizepoolAddedValue          float64
	PrizepoolSurplus             *float64
	GuaranteeOverlayCost         float64
	GameProfit                   float64
}

// CalculateFinancials reconciles entry counts and derives the prize-pool economics.
func CalculateFinancials(in FinancialInput) Financials {
	unique := max(0, in.TotalUniquePlayers)
	addons := max(0, in.TotalAddons)

	var rebuys int
	switch {
	case in.TotalRebuys != nil:
		rebuys = max(0, *in.TotalRebuys)
	case in.ConsolidationType == ConsolidationParent:
		// a parent's rebuys are the sum of its flights and are supplied explicitly
	case in.TotalEntries > unique:
		rebuys = max(0, in.TotalEntries-unique-addons)
	}

	var initial int
	switch {
	case in.TotalInitialEntries != nil:
		initial = max(0, *in.TotalInitialEntries)
	case unique > 0:
		initial = unique
	default:
		initial = max(0, in.TotalEntries-rebuys-addons)
	}
	// every unique player made at least one initial entry
	initial = max(initial, unique)

	out := Financials{
		TotalUniquePlayers:  unique,
		TotalInitialEntries: initial,
		TotalRebuys:         rebuys,
		TotalAddons:         addons,
		TotalEntries:        initial + rebuys + addons,
	}

	entriesForRake := float64(initial + rebuys)
	out.RakeRevenue = round2(in.Rake * entriesForRake)
	out.PrizepoolPlayerContributions = round2((in.BuyIn-in.Rake)*entriesForRake + in.BuyIn*float64(addons))

	if in.GuaranteeAmount != nil && *in.GuaranteeAmount > 0 {
		out.HasGuarantee = true
		out.GuaranteeAmount = round2(*in.GuaranteeAmount)
		shortfall := out.GuaranteeAmount - out.PrizepoolPlayerContributions
		out.GuaranteeOverlayCost = round2(math.Max(0, shortfall))
		surplus := round2(math.Max(0, -shortfall))
		out.PrizepoolSurplus = &surplus
		out.PrizepoolAddedValue = out.GuaranteeOverlayCost
	}

	out.GameProfit = round2(out.RakeRevenue - out.GuaranteeOverlayCost)
	return out
}

// Apply copies the derived values onto g.
func (f Financials) Apply(g *Game) {
	g.TotalUniquePlayers = f.TotalUniquePlayers
	g.TotalInitialEntries = f.TotalInitialEntries
	g.TotalEntries = f.TotalEntries
	g.TotalRebuys = f.TotalRebuys
	g.TotalAddons = f.TotalAddons
	g.HasGuarantee = f.HasGuarantee
	g.GuaranteeAmount = f.GuaranteeAmount
	g.RakeRevenue = f.RakeRevenue
	g.PrizepoolPlayerContributions = f.PrizepoolPlayerContributions
	g.PrizepoolAddedValue = f.PrizepoolAddedValue
	g.PrizepoolSurplus = f.PrizepoolSurplus
	g.GuaranteeOverlayCost = f.GuaranteeOverlayCost
	g.GameProfit = f.GameProfit
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
