package game

import "testing"

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCalculateFinancialsFinishedWithGuarantee(t *testing.T) {
	t.Parallel()

	f := CalculateFinancials(FinancialInput{
		BuyIn:              100,
		Rake:               10,
		GuaranteeAmount:    floatPtr(5000),
		TotalUniquePlayers: 78,
		TotalEntries:       118,
	})

	if f.TotalRebuys != 40 {
		t.Fatalf("expected 40 rebuys, got %d", f.TotalRebuys)
	}
	if f.TotalInitialEntries != 78 || f.TotalEntries != 118 {
		t.Fatalf("unexpected entries: %+v", f)
	}
	if f.RakeRevenue != 1180 {
		t.Fatalf("expected rake revenue 1180, got %v", f.RakeRevenue)
	}
	if f.PrizepoolPlayerContributions != 10620 {
		t.Fatalf("expected contributions 10620, got %v", f.PrizepoolPlayerContributions)
	}
	if f.GuaranteeOverlayCost != 0 {
		t.Fatalf("expected no overlay, got %v", f.GuaranteeOverlayCost)
	}
	if f.PrizepoolSurplus == nil || *f.PrizepoolSurplus != 5620 {
		t.Fatalf("expected surplus 5620, got %v", f.PrizepoolSurplus)
	}
	if f.GameProfit != 1180 {
		t.Fatalf("expected profit 1180, got %v", f.GameProfit)
	}
}

func TestCalculateFinancialsOverlay(t *testing.T) {
	t.Parallel()

	f := CalculateFinancials(FinancialInput{
		BuyIn:               55,
		Rake:                5,
		GuaranteeAmount:     floatPtr(2000),
		TotalUniquePlayers:  30,
		TotalInitialEntries: intPtr(30),
		TotalRebuys:         intPtr(0),
		TotalAddons:         4,
	})

	// contributions = 50*30 + 55*4 = 1720 -> overlay 280
	if f.PrizepoolPlayerContributions != 1720 {
		t.Fatalf("unexpected contributions %v", f.PrizepoolPlayerContributions)
	}
	if f.GuaranteeOverlayCost != 280 || f.PrizepoolAddedValue != 280 {
		t.Fatalf("unexpected overlay %v / added %v", f.GuaranteeOverlayCost, f.PrizepoolAddedValue)
	}
	if f.PrizepoolSurplus == nil || *f.PrizepoolSurplus != 0 {
		t.Fatalf("expected zero surplus, got %v", f.PrizepoolSurplus)
	}
	if f.GameProfit != 150-280 {
		t.Fatalf("unexpected profit %v", f.GameProfit)
	}
	if f.TotalEntries != 34 {
		t.Fatalf("addons should count as entries, got %d", f.TotalEntries)
	}
}

func TestCalculateFinancialsParentSuppressesRebuyDerivation(t *testing.T) {
	t.Parallel()

	f := CalculateFinancials(FinancialInput{
		BuyIn:              200,
		Rake:               20,
		TotalUniquePlayers: 90,
		TotalEntries:       120,
		ConsolidationType:  ConsolidationParent,
	})
	if f.TotalRebuys != 0 {
		t.Fatalf("parent rebuys must not be derived, got %d", f.TotalRebuys)
	}
	if f.TotalInitialEntries != 90 {
		t.Fatalf("unexpected initial entries %d", f.TotalInitialEntries)
	}
}

func TestCalculateFinancialsInvariants(t *testing.T) {
	t.Parallel()

	inputs := []FinancialInput{
		{BuyIn: 100, Rake: 10, TotalUniquePlayers: 78, TotalEntries: 118},
		{BuyIn: 100, Rake: 10, TotalUniquePlayers: 0, TotalEntries: 50},
		{BuyIn: 30, Rake: 3, TotalUniquePlayers: 40, TotalEntries: 10},
		{BuyIn: 550, Rake: 50, GuaranteeAmount: floatPtr(50000), TotalUniquePlayers: 60, TotalRebuys: intPtr(12), TotalAddons: 20, TotalEntries: 92},
		{BuyIn: 20, Rake: 2, GuaranteeAmount: floatPtr(0), TotalUniquePlayers: 12, TotalEntries: 12},
		{BuyIn: 0, Rake: 0, TotalUniquePlayers: 5, TotalInitialEntries: intPtr(3)},
	}

	for i, in := range inputs {
		f := CalculateFinancials(in)
		if f.TotalEntries != f.TotalInitialEntries+f.TotalRebuys+f.TotalAddons {
			t.Fatalf("case %d: entries do not add up: %+v", i, f)
		}
		if f.TotalEntries < f.TotalUniquePlayers {
			t.Fatalf("case %d: entries below unique players: %+v", i, f)
		}
		if f.GameProfit != round2(f.RakeRevenue-f.GuaranteeOverlayCost) {
			t.Fatalf("case %d: profit mismatch: %+v", i, f)
		}
		wantContrib := round2((in.BuyIn-in.Rake)*float64(f.TotalInitialEntries+f.TotalRebuys) + in.BuyIn*float64(f.TotalAddons))
		if f.PrizepoolPlayerContributions != wantContrib {
			t.Fatalf("case %d: contributions mismatch: %v vs %v", i, f.PrizepoolPlayerContributions, wantContrib)
		}
		if !f.HasGuarantee && (f.GuaranteeOverlayCost != 0 || f.PrizepoolSurplus != nil) {
			t.Fatalf("case %d: no guarantee must mean no overlay and nil surplus: %+v", i, f)
		}
	}
}
