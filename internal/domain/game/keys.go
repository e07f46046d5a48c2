package game

import (
	"strings"
	"time"
)

const (
	keySeparator = "#"
	unknownKey   = "UNKNOWN"
)

// QueryKeys are the denormalized index keys derived from scheduling fields.
// All are nil for NOT_PUBLISHED games.
type QueryKeys struct {
	GameDayOfWeek     *string
	GameYearMonth     *string
	BuyInBucket       *string
	VenueScheduleKey  *string
	EntityQueryKey    *string
	VenueGameTypeKey  *string
	EntityGameTypeKey *string
}

func (k QueryKeys) all() []*string {
	return []*string{
		k.GameDayOfWeek, k.GameYearMonth, k.BuyInBucket, k.VenueScheduleKey,
		k.EntityQueryKey, k.VenueGameTypeKey, k.EntityGameTypeKey,
	}
}

func (k QueryKeys) AllNil() bool {
	for _, v := range k.all() {
		if v != nil {
			return false
		}
	}
	return true
}

func (k QueryKeys) AllSet() bool {
	for _, v := range k.all() {
		if v == nil {
			return false
		}
	}
	return true
}

type KeyInput struct {
	GameStart   time.Time
	BuyIn       float64
	GameVariant Variant
	VenueID     string
	EntityID    string
	IsRegular   bool
	IsSeries    bool
	IsSatellite bool
	GameStatus  Status
}

func KeyInputFor(g Game) KeyInput {
	return KeyInput{
		GameStart:   g.GameStartDateTime,
		BuyIn:       g.BuyIn,
		GameVariant: g.GameVariant,
		VenueID:     g.VenueID,
		EntityID:    g.EntityID,
		IsRegular:   g.IsRegular,
		IsSeries:    g.IsSeries,
		IsSatellite: g.IsSatellite,
		GameStatus:  g.GameStatus,
	}
}

// DeriveKeys computes every query key for in.
func DeriveKeys(in KeyInput) QueryKeys {
	if in.GameStatus == StatusNotPublished {
		return QueryKeys{}
	}

	day, yearMonth := unknownKey, unknownKey
	if !in.GameStart.IsZero() {
		start := in.GameStart.UTC()
		day = strings.ToUpper(start.Weekday().String())
		yearMonth = start.Format("2006-01")
	}
	bucket := BuyInBucket(in.BuyIn)
	variant := orUnknown(string(in.GameVariant))
	venue := orUnknown(in.VenueID)
	entity := orUnknown(in.EntityID)
	label := TypeLabel(in.IsRegular, in.IsSeries, in.IsSatellite)

	return QueryKeys{
		GameDayOfWeek:     ptr(day),
		GameYearMonth:     ptr(yearMonth),
		BuyInBucket:       ptr(bucket),
		VenueScheduleKey:  ptr(joinKey(venue, day, variant)),
		EntityQueryKey:    ptr(joinKey(entity, day, variant, bucket)),
		VenueGameTypeKey:  ptr(joinKey(venue, label, day, variant)),
		EntityGameTypeKey: ptr(joinKey(entity, label, day, variant, bucket)),
	}
}

var buyInBuckets = []struct {
	max   float64
	label string
}{
	{25, "0000-0025"},
	{50, "0026-0050"},
	{100, "0051-0100"},
	{200, "0101-0200"},
	{500, "0201-0500"},
	{1000, "0501-1000"},
}

func BuyInBucket(buyIn float64) string {
	for _, b := range buyInBuckets {
		if buyIn <= b.max {
			return b.label
		}
	}
	return "1001-PLUS"
}

func TypeLabel(isRegular, isSeries, isSatellite bool) string {
	switch {
	case isRegular:
		return "REGULAR"
	case isSeries:
		return "SERIES"
	case isSatellite:
		return "SATELLITE"
	default:
		return "STANDARD"
	}
}

var keySourceFields = map[string]struct{}{
	FieldGameStartDateTime: {},
	FieldBuyIn:             {},
	FieldGameVariant:       {},
	FieldVenueID:           {},
	FieldEntityID:          {},
	FieldIsRegular:         {},
	FieldIsSeries:          {},
	FieldIsSatellite:       {},
	FieldGameStatus:        {},
}

// ShouldRecomputeKeys reports whether any key input is among changedFields.
func ShouldRecomputeKeys(changedFields []string) bool {
	for _, f := range changedFields {
		if _, ok := keySourceFields[f]; ok {
			return true
		}
	}
	return false
}

func joinKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownKey
	}
	return s
}

func ptr[T any](v T) *T {
	return &v
}
