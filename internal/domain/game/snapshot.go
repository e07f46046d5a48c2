package game

import "time"

// FinancialSnapshot is the per-game accounting row kept for reporting.
type FinancialSnapshot struct {
	GameID            string
	EntityID          string
	VenueID           string
	GameStartDateTime time.Time
	BuyIn             float64
	Rake              float64
	VenueFee          float64
	TotalEntries      int
	RakeRevenue       float64
	VenueFeeRevenue   float64
	TotalRevenue      float64
	PlayerPrizepool   float64
	OverlayCost       float64
	Surplus           float64
	NetProfit         float64
	UpdatedAt         time.Time
}

func SnapshotFrom(g Game, at time.Time) FinancialSnapshot {
	venueFeeRevenue := round2(g.VenueFee * float64(g.TotalInitialEntries+g.TotalRebuys))
	total := round2(g.RakeRevenue + venueFeeRevenue)
	var surplus float64
	if g.PrizepoolSurplus != nil {
		surplus = *g.PrizepoolSurplus
	}
	return FinancialSnapshot{
		GameID:            g.ID,
		EntityID:          g.EntityID,
		VenueID:           g.VenueID,
		GameStartDateTime: g.GameStartDateTime,
		BuyIn:             g.BuyIn,
		Rake:              g.Rake,
		VenueFee:          g.VenueFee,
		TotalEntries:      g.TotalEntries,
		RakeRevenue:       g.RakeRevenue,
		VenueFeeRevenue:   venueFeeRevenue,
		TotalRevenue:      total,
		PlayerPrizepool:   g.PrizepoolPlayerContributions + g.PrizepoolAddedValue,
		OverlayCost:       g.GuaranteeOverlayCost,
		Surplus:           surplus,
		NetProfit:         round2(total - g.GuaranteeOverlayCost),
		UpdatedAt:         at,
	}
}
