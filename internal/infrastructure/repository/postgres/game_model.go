package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
)

type gameTableModel struct {
	ID           string         `db:"id"`
	EntityID     string         `db:"entity_id"`
	TournamentID int64          `db:"tournament_id"`
	SourceURL    sql.NullString `db:"source_url"`

	Name              string     `db:"name"`
	GameType          string     `db:"game_type"`
	GameVariant       string     `db:"game_variant"`
	GameStatus        string     `db:"game_status"`
	GameStartDateTime time.Time  `db:"game_start_date_time"`
	GameEndDateTime   *time.Time `db:"game_end_date_time"`

	BuyIn                        float64         `db:"buy_in"`
	Rake                         float64         `db:"rake"`
	VenueFee                     float64         `db:"venue_fee"`
	GuaranteeAmount              float64         `db:"guarantee_amount"`
	HasGuarantee                 bool            `db:"has_guarantee"`
	RakeRevenue                  float64         `db:"rake_revenue"`
	PrizepoolPlayerContributions float64         `db:"prizepool_player_contributions"`
	PrizepoolAddedValue          float64         `db:"prizepool_added_value"`
	PrizepoolSurplus             sql.NullFloat64 `db:"prizepool_surplus"`
	GuaranteeOverlayCost         float64         `db:"guarantee_overlay_cost"`
	GameProfit                   float64         `db:"game_profit"`

	TotalUniquePlayers  int     `db:"total_unique_players"`
	TotalInitialEntries int     `db:"total_initial_entries"`
	TotalEntries        int     `db:"total_entries"`
	TotalRebuys         int     `db:"total_rebuys"`
	TotalAddons         int     `db:"total_addons"`
	TotalPrizesPaid     float64 `db:"total_prizes_paid"`
	HasCompleteResults  bool    `db:"has_complete_results"`

	IsSeries          bool           `db:"is_series"`
	IsSatellite       bool           `db:"is_satellite"`
	IsRegular         bool           `db:"is_regular"`
	SeriesName        string         `db:"series_name"`
	ConsolidationType string         `db:"consolidation_type"`
	ParentGameID      sql.NullString `db:"parent_game_id"`

	VenueID                   string  `db:"venue_id"`
	VenueAssignmentStatus     string  `db:"venue_assignment_status"`
	VenueAssignmentConfidence float64 `db:"venue_assignment_confidence"`

	TournamentSeriesID         sql.NullString `db:"tournament_series_id"`
	SeriesAssignmentStatus     string         `db:"series_assignment_status"`
	SeriesAssignmentConfidence float64        `db:"series_assignment_confidence"`

	RecurringGameID                   sql.NullString `db:"recurring_game_id"`
	RecurringGameAssignmentStatus     string         `db:"recurring_game_assignment_status"`
	RecurringGameAssignmentConfidence float64        `db:"recurring_game_assignment_confidence"`
	WasScheduledInstance              bool           `db:"was_scheduled_instance"`
	InstanceNumber                    sql.NullInt64  `db:"instance_number"`
	IsReplacementInstance             bool           `db:"is_replacement_instance"`
	ReplacementReason                 string         `db:"replacement_reason"`
	DeviationNotes                    string         `db:"deviation_notes"`

	GameDayOfWeek     sql.NullString `db:"game_day_of_week"`
	GameYearMonth     sql.NullString `db:"game_year_month"`
	BuyInBucket       sql.NullString `db:"buy_in_bucket"`
	VenueScheduleKey  sql.NullString `db:"venue_schedule_key"`
	EntityQueryKey    sql.NullString `db:"entity_query_key"`
	VenueGameTypeKey  sql.NullString `db:"venue_game_type_key"`
	EntityGameTypeKey sql.NullString `db:"entity_game_type_key"`

	ContentHash   string     `db:"content_hash"`
	DataChangedAt *time.Time `db:"data_changed_at"`

	Version       int64     `db:"version"`
	LastChangedAt time.Time `db:"last_changed_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type playerEntryTableModel struct {
	GameID     string        `db:"game_id"`
	EntityID   string        `db:"entity_id"`
	PlayerName string        `db:"player_name"`
	Status     string        `db:"status"`
	Rank       sql.NullInt64 `db:"rank"`
	Winnings   float64       `db:"winnings"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

type financialSnapshotTableModel struct {
	GameID            string    `db:"game_id"`
	EntityID          string    `db:"entity_id"`
	VenueID           string    `db:"venue_id"`
	GameStartDateTime time.Time `db:"game_start_date_time"`
	BuyIn             float64   `db:"buy_in"`
	Rake              float64   `db:"rake"`
	VenueFee          float64   `db:"venue_fee"`
	TotalEntries      int       `db:"total_entries"`
	RakeRevenue       float64   `db:"rake_revenue"`
	VenueFeeRevenue   float64   `db:"venue_fee_revenue"`
	TotalRevenue      float64   `db:"total_revenue"`
	PlayerPrizepool   float64   `db:"player_prizepool"`
	OverlayCost       float64   `db:"overlay_cost"`
	Surplus           float64   `db:"surplus"`
	NetProfit         float64   `db:"net_profit"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func gameToRow(g game.Game) gameTableModel {
	sourceURL := sql.NullString{}
	if g.SourceURL != "" {
		sourceURL = sql.NullString{String: g.SourceURL, Valid: true}
	}
	return gameTableModel{
		ID:                                g.ID,
		EntityID:                          g.EntityID,
		TournamentID:                      g.TournamentID,
		SourceURL:                         sourceURL,
		Name:                              g.Name,
		GameType:                          string(g.GameType),
		GameVariant:                       string(g.GameVariant),
		GameStatus:                        string(g.GameStatus),
		GameStartDateTime:                 g.GameStartDateTime.UTC(),
		GameEndDateTime:                   utcPtr(g.GameEndDateTime),
		BuyIn:                             g.BuyIn,
		Rake:                              g.Rake,
		VenueFee:                          g.VenueFee,
		GuaranteeAmount:                   g.GuaranteeAmount,
		HasGuarantee:                      g.HasGuarantee,
		RakeRevenue:                       g.RakeRevenue,
		PrizepoolPlayerContributions:      g.PrizepoolPlayerContributions,
		PrizepoolAddedValue:               g.PrizepoolAddedValue,
		PrizepoolSurplus:                  floatParam(g.PrizepoolSurplus),
		GuaranteeOverlayCost:              g.GuaranteeOverlayCost,
		GameProfit:                        g.GameProfit,
		TotalUniquePlayers:                g.TotalUniquePlayers,
		TotalInitialEntries:               g.TotalInitialEntries,
		TotalEntries:                      g.TotalEntries,
		TotalRebuys:                       g.TotalRebuys,
		TotalAddons:                       g.TotalAddons,
		TotalPrizesPaid:                   g.TotalPrizesPaid,
		HasCompleteResults:                g.HasCompleteResults,
		IsSeries:                          g.IsSeries,
		IsSatellite:                       g.IsSatellite,
		IsRegular:                         g.IsRegular,
		SeriesName:                        g.SeriesName,
		ConsolidationType:                 string(g.ConsolidationType),
		ParentGameID:                      nullString(g.ParentGameID),
		VenueID:                           g.VenueID,
		VenueAssignmentStatus:             string(g.VenueAssignmentStatus),
		VenueAssignmentConfidence:         g.VenueAssignmentConfidence,
		TournamentSeriesID:                nullString(g.TournamentSeriesID),
		SeriesAssignmentStatus:            string(g.SeriesAssignmentStatus),
		SeriesAssignmentConfidence:        g.SeriesAssignmentConfidence,
		RecurringGameID:                   nullString(g.RecurringGameID),
		RecurringGameAssignmentStatus:     string(g.RecurringGameAssignmentStatus),
		RecurringGameAssignmentConfidence: g.RecurringGameAssignmentConfidence,
		WasScheduledInstance:              g.WasScheduledInstance,
		InstanceNumber:                    intParam(g.InstanceNumber),
		IsReplacementInstance:             g.IsReplacementInstance,
		ReplacementReason:                 g.ReplacementReason,
		DeviationNotes:                    g.DeviationNotes,
		GameDayOfWeek:                     nullString(g.Keys.GameDayOfWeek),
		GameYearMonth:                     nullString(g.Keys.GameYearMonth),
		BuyInBucket:                       nullString(g.Keys.BuyInBucket),
		VenueScheduleKey:                  nullString(g.Keys.VenueScheduleKey),
		EntityQueryKey:                    nullString(g.Keys.EntityQueryKey),
		VenueGameTypeKey:                  nullString(g.Keys.VenueGameTypeKey),
		EntityGameTypeKey:                 nullString(g.Keys.EntityGameTypeKey),
		ContentHash:                       g.ContentHash,
		DataChangedAt:                     utcPtr(g.DataChangedAt),
		Version:                           g.Version,
		LastChangedAt:                     g.LastChangedAt.UTC(),
		CreatedAt:                         g.CreatedAt.UTC(),
		UpdatedAt:                         g.UpdatedAt.UTC(),
	}
}

func gameFromRow(row gameTableModel) game.Game {
	return game.Game{
		ID:                                row.ID,
		EntityID:                          row.EntityID,
		TournamentID:                      row.TournamentID,
		SourceURL:                         row.SourceURL.String,
		Name:                              row.Name,
		GameType:                          game.Type(row.GameType),
		GameVariant:                       game.Variant(row.GameVariant),
		GameStatus:                        game.Status(row.GameStatus),
		GameStartDateTime:                 row.GameStartDateTime.UTC(),
		GameEndDateTime:                   utcPtr(row.GameEndDateTime),
		BuyIn:                             row.BuyIn,
		Rake:                              row.Rake,
		VenueFee:                          row.VenueFee,
		GuaranteeAmount:                   row.GuaranteeAmount,
		HasGuarantee:                      row.HasGuarantee,
		RakeRevenue:                       row.RakeRevenue,
		PrizepoolPlayerContributions:      row.PrizepoolPlayerContributions,
		PrizepoolAddedValue:               row.PrizepoolAddedValue,
		PrizepoolSurplus:                  nullFloat(row.PrizepoolSurplus),
		GuaranteeOverlayCost:              row.GuaranteeOverlayCost,
		GameProfit:                        row.GameProfit,
		TotalUniquePlayers:                row.TotalUniquePlayers,
		TotalInitialEntries:               row.TotalInitialEntries,
		TotalEntries:                      row.TotalEntries,
		TotalRebuys:                       row.TotalRebuys,
		TotalAddons:                       row.TotalAddons,
		TotalPrizesPaid:                   row.TotalPrizesPaid,
		HasCompleteResults:                row.HasCompleteResults,
		IsSeries:                          row.IsSeries,
		IsSatellite:                       row.IsSatellite,
		IsRegular:                         row.IsRegular,
		SeriesName:                        row.SeriesName,
		ConsolidationType:                 game.ConsolidationType(row.ConsolidationType),
		ParentGameID:                      stringPtr(row.ParentGameID),
		VenueID:                           row.VenueID,
		VenueAssignmentStatus:             game.AssignmentStatus(row.VenueAssignmentStatus),
		VenueAssignmentConfidence:         row.VenueAssignmentConfidence,
		TournamentSeriesID:                stringPtr(row.TournamentSeriesID),
		SeriesAssignmentStatus:            game.AssignmentStatus(row.SeriesAssignmentStatus),
		SeriesAssignmentConfidence:        row.SeriesAssignmentConfidence,
		RecurringGameID:                   stringPtr(row.RecurringGameID),
		RecurringGameAssignmentStatus:     game.AssignmentStatus(row.RecurringGameAssignmentStatus),
		RecurringGameAssignmentConfidence: row.RecurringGameAssignmentConfidence,
		WasScheduledInstance:              row.WasScheduledInstance,
		InstanceNumber:                    nullInt(row.InstanceNumber),
		IsReplacementInstance:             row.IsReplacementInstance,
		ReplacementReason:                 row.ReplacementReason,
		DeviationNotes:                    row.DeviationNotes,
		Keys: game.QueryKeys{
			GameDayOfWeek:     stringPtr(row.GameDayOfWeek),
			GameYearMonth:     stringPtr(row.GameYearMonth),
			BuyInBucket:       stringPtr(row.BuyInBucket),
			VenueScheduleKey:  stringPtr(row.VenueScheduleKey),
			EntityQueryKey:    stringPtr(row.EntityQueryKey),
			VenueGameTypeKey:  stringPtr(row.VenueGameTypeKey),
			EntityGameTypeKey: stringPtr(row.EntityGameTypeKey),
		},
		ContentHash:   row.ContentHash,
		DataChangedAt: utcPtr(row.DataChangedAt),
		Version:       row.Version,
		LastChangedAt: row.LastChangedAt.UTC(),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

// gameFieldColumns maps change-set field names to the columns they touch.
var gameFieldColumns = map[string][]string{
	game.FieldName:                         {"name"},
	game.FieldGameType:                     {"game_type"},
	game.FieldGameVariant:                  {"game_variant"},
	game.FieldGameStatus:                   {"game_status"},
	game.FieldGameStartDateTime:            {"game_start_date_time"},
	game.FieldGameEndDateTime:              {"game_end_date_time"},
	game.FieldBuyIn:                        {"buy_in"},
	game.FieldRake:                         {"rake"},
	game.FieldVenueFee:                     {"venue_fee"},
	game.FieldGuaranteeAmount:              {"guarantee_amount"},
	game.FieldHasGuarantee:                 {"has_guarantee"},
	game.FieldRakeRevenue:                  {"rake_revenue"},
	game.FieldPrizepoolPlayerContributions: {"prizepool_player_contributions"},
	game.FieldPrizepoolAddedValue:          {"prizepool_added_value"},
	game.FieldPrizepoolSurplus:             {"prizepool_surplus"},
	game.FieldGuaranteeOverlayCost:         {"guarantee_overlay_cost"},
	game.FieldGameProfit:                   {"game_profit"},
	game.FieldTotalUniquePlayers:           {"total_unique_players"},
	game.FieldTotalInitialEntries:          {"total_initial_entries"},
	game.FieldTotalEntries:                 {"total_entries"},
	game.FieldTotalRebuys:                  {"total_rebuys"},
	game.FieldTotalAddons:                  {"total_addons"},
	game.FieldTotalPrizesPaid:              {"total_prizes_paid"},
	game.FieldHasCompleteResults:           {"has_complete_results"},
	game.FieldIsSeries:                     {"is_series"},
	game.FieldIsSatellite:                  {"is_satellite"},
	game.FieldIsRegular:                    {"is_regular"},
	game.FieldSeriesName:                   {"series_name"},
	game.FieldConsolidationType:            {"consolidation_type"},
	game.FieldParentGameID:                 {"parent_game_id"},
	game.FieldVenueID:                      {"venue_id"},
	game.FieldTournamentSeriesID:           {"tournament_series_id"},
	game.FieldRecurringGameID:              {"recurring_game_id"},
	game.FieldEntityID:                     {"entity_id"},
	game.FieldSourceURL:                    {"source_url"},
	game.FieldVenueAssignment:              {"venue_assignment_status", "venue_assignment_confidence"},
	game.FieldSeriesAssignment:             {"series_assignment_status", "series_assignment_confidence"},
	game.FieldRecurringAssignment: {
		"recurring_game_assignment_status", "recurring_game_assignment_confidence",
		"was_scheduled_instance", "instance_number", "is_replacement_instance",
		"replacement_reason", "deviation_notes",
	},
	game.FieldQueryKeys: {
		"game_day_of_week", "game_year_month", "buy_in_bucket", "venue_schedule_key",
		"entity_query_key", "venue_game_type_key", "entity_game_type_key",
	},
	game.FieldContentHash:   {"content_hash"},
	game.FieldDataChangedAt: {"data_changed_at"},
	game.FieldTournamentID:  {"tournament_id"},
}
