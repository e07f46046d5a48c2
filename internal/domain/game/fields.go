package game

// Field names used in change sets and partial updates.
const (
	FieldName                         = "name"
	FieldGameType                     = "gameType"
	FieldGameVariant                  = "gameVariant"
	FieldGameStatus                   = "gameStatus"
	FieldGameStartDateTime            = "gameStartDateTime"
	FieldGameEndDateTime              = "gameEndDateTime"
	FieldBuyIn                        = "buyIn"
	FieldRake                         = "rake"
	FieldVenueFee                     = "venueFee"
	FieldGuaranteeAmount              = "guaranteeAmount"
	FieldHasGuarantee                 = "hasGuarantee"
	FieldRakeRevenue                  = "rakeRevenue"
	FieldPrizepoolPlayerContributions = "prizepoolPlayerContributions"
	FieldPrizepoolAddedValue          = "prizepoolAddedValue"
	FieldPrizepoolSurplus             = "prizepoolSurplus"
	FieldGuaranteeOverlayCost         = "guaranteeOverlayCost"
	FieldGameProfit                   = "gameProfit"
	FieldTotalUniquePlayers           = "totalUniquePlayers"
	FieldTotalInitialEntries          = "totalInitialEntries"
	FieldTotalEntries                 = "totalEntries"
	FieldTotalRebuys                  = "totalRebuys"
	FieldTotalAddons                  = "totalAddons"
	FieldTotalPrizesPaid              = "totalPrizesPaid"
	FieldHasCompleteResults           = "hasCompleteResults"
	FieldIsSeries                     = "isSeries"
	FieldIsSatellite                  = "isSatellite"
	FieldIsRegular                    = "isRegular"
	FieldSeriesName                   = "seriesName"
	FieldConsolidationType            = "consolidationType"
	FieldParentGameID                 = "parentGameId"
	FieldVenueID                      = "venueId"
	FieldTournamentSeriesID           = "tournamentSeriesId"
	FieldRecurringGameID              = "recurringGameId"
	FieldEntityID                     = "entityId"
	FieldSourceURL                    = "sourceUrl"

	// Bookkeeping fields; written on update but never hashed.
	FieldVenueAssignment     = "venueAssignment"
	FieldSeriesAssignment    = "seriesAssignment"
	FieldRecurringAssignment = "recurringAssignment"
	FieldQueryKeys           = "queryKeys"
	FieldContentHash         = "contentHash"
	FieldDataChangedAt       = "dataChangedAt"
	FieldTournamentID        = "tournamentId"
)
