package game

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bytedance/sonic"
)

// hashHexLength is the number of hex characters kept from the SHA-256 digest.
const hashHexLength = 32

const hashTimeLayout = "2006-01-02T15:04:05.000Z"

// MeaningfulFields returns the canonical values that define a game's content.
// Timestamps, confidences, query keys and version metadata are not part of it.
func MeaningfulFields(g Game) map[string]any {
	return map[string]any{
		FieldName:              str(g.Name),
		FieldGameType:          str(string(g.GameType)),
		FieldGameVariant:       str(string(g.GameVariant)),
		FieldGameStatus:        str(string(g.GameStatus)),
		FieldGameStartDateTime: instant(&g.GameStartDateTime),
		FieldGameEndDateTime:   instant(g.GameEndDateTime),

		FieldBuyIn:                        money(g.BuyIn),
		FieldRake:                         money(g.Rake),
		FieldVenueFee:                     money(g.VenueFee),
		FieldGuaranteeAmount:              money(g.GuaranteeAmount),
		FieldHasGuarantee:                 g.HasGuarantee,
		FieldRakeRevenue:                  money(g.RakeRevenue),
		FieldPrizepoolPlayerContributions: money(g.PrizepoolPlayerContributions),
		FieldPrizepoolAddedValue:          money(g.PrizepoolAddedValue),
		FieldPrizepoolSurplus:             moneyPtr(g.PrizepoolSurplus),
		FieldGuaranteeOverlayCost:         money(g.GuaranteeOverlayCost),
		FieldGameProfit:                   money(g.GameProfit),

		FieldTotalUniquePlayers:  g.TotalUniquePlayers,
		FieldTotalInitialEntries: g.TotalInitialEntries,
		FieldTotalEntries:        g.TotalEntries,
		FieldTotalRebuys:         g.TotalRebuys,
		FieldTotalAddons:         g.TotalAddons,
		FieldTotalPrizesPaid:     money(g.TotalPrizesPaid),
		FieldHasCompleteResults:  g.HasCompleteResults,

		FieldIsSeries:          g.IsSeries,
		FieldIsSatellite:       g.IsSatellite,
		FieldIsRegular:         g.IsRegular,
		FieldSeriesName:        str(g.SeriesName),
		FieldConsolidationType: str(string(g.ConsolidationType)),
		FieldParentGameID:      strPtr(g.ParentGameID),

		FieldVenueID:            str(g.VenueID),
		FieldTournamentSeriesID: strPtr(g.TournamentSeriesID),
		FieldRecurringGameID:    strPtr(g.RecurringGameID),
	}
}

// ContentHash fingerprints the meaningful fields of g.
func ContentHash(g Game) (string, error) {
	return hashFields(MeaningfulFields(g))
}

func hashFields(fields map[string]any) (string, error) {
	// ConfigStd sorts map keys, which makes the encoding canonical.
	raw, err := sonic.ConfigStd.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode meaningful fields: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:hashHexLength], nil
}

// DetectChanges compares two versions of a game. changed is decided by the hash;
// fields lists which meaningful values differ and is diagnostic only.
func DetectChanges(prev, next Game) (changed bool, fields []string, err error) {
	prevFields := MeaningfulFields(prev)
	nextFields := MeaningfulFields(next)

	prevHash, err := hashFields(prevFields)
	if err != nil {
		return false, nil, err
	}
	nextHash, err := hashFields(nextFields)
	if err != nil {
		return false, nil, err
	}

	for name, v := range nextFields {
		if prevFields[name] != v {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return prevHash != nextHash, fields, nil
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtr(s *string) any {
	if s == nil {
		return nil
	}
	return str(*s)
}

func instant(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(hashTimeLayout)
}

func money(v float64) float64 {
	return math.Round(v*100) / 100
}

func moneyPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return money(*v)
}
