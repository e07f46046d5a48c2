package game

import (
	"context"
	"fmt"
	"time"
)

// DefaultPlayerBatchSize is the number of player results per queue message.
const DefaultPlayerBatchSize = 25

type PlayerResult struct {
	Name            string  `json:"name"`
	Rank            int     `json:"rank"`
	Winnings        float64 `json:"winnings"`
	Points          float64 `json:"points,omitempty"`
	IsQualification bool    `json:"isQualification,omitempty"`
	Rebuys          int     `json:"rebuys,omitempty"`
	Addons          int     `json:"addons,omitempty"`
}

type PlayerList struct {
	AllPlayers         []PlayerResult `json:"allPlayers"`
	TotalUniquePlayers int            `json:"totalUniquePlayers"`
	HasCompleteResults bool           `json:"hasCompleteResults"`
	TotalPrizesPaid    float64        `json:"totalPrizesPaid"`
}

// PlayerEntry is the live seat record kept while a game is in play.
type PlayerEntry struct {
	GameID     string
	EntityID   string
	PlayerName string
	Status     string
	Rank       *int
	Winnings   float64
	UpdatedAt  time.Time
}

const (
	EntryStatusPlaying    = "PLAYING"
	EntryStatusEliminated = "ELIMINATED"
)

// SplitPlayerBatches chunks players into consecutive slices of at most size.
func SplitPlayerBatches(players []PlayerResult, size int) [][]PlayerResult {
	if size <= 0 {
		size = DefaultPlayerBatchSize
	}
	if len(players) == 0 {
		return nil
	}
	batches := make([][]PlayerResult, 0, (len(players)+size-1)/size)
	for start := 0; start < len(players); start += size {
		end := min(start+size, len(players))
		batches = append(batches, players[start:end])
	}
	return batches
}

// BatchDeduplicationID is stable for a game, batch and retry round.
func BatchDeduplicationID(gameID string, batchIndex int, epochMs int64) string {
	return fmt.Sprintf("%s-batch%d-%d", gameID, batchIndex, epochMs)
}

type PlayerBatchGame struct {
	ID                 string    `json:"id"`
	EntityID           string    `json:"entityId"`
	VenueID            string    `json:"venueId"`
	TournamentID       int64     `json:"tournamentId"`
	Name               string    `json:"name"`
	GameStatus         Status    `json:"gameStatus"`
	GameStartDateTime  time.Time `json:"gameStartDateTime"`
	BuyIn              float64   `json:"buyIn"`
	TotalEntries       int       `json:"totalEntries"`
	IsSeries           bool      `json:"isSeries"`
	TournamentSeriesID *string   `json:"tournamentSeriesId,omitempty"`
	RecurringGameID    *string   `json:"recurringGameId,omitempty"`
}

type PlayerBatchMetadata struct {
	ProcessedAt        time.Time `json:"processedAt"`
	SourceURL          string    `json:"sourceUrl"`
	BatchIndex         int       `json:"batchIndex"`
	BatchCount         int       `json:"batchCount"`
	TotalPlayersInGame int       `json:"totalPlayersInGame"`
	WasEdited          bool      `json:"wasEdited"`
}

// PlayerBatchMessage is one unit of downstream player-result processing.
type PlayerBatchMessage struct {
	Game     PlayerBatchGame     `json:"game"`
	Players  PlayerList          `json:"players"`
	Metadata PlayerBatchMetadata `json:"metadata"`

	GroupID         string `json:"-"`
	DeduplicationID string `json:"-"`
}

func BatchGameFrom(g Game) PlayerBatchGame {
	return PlayerBatchGame{
		ID:                 g.ID,
		EntityID:           g.EntityID,
		VenueID:            g.VenueID,
		TournamentID:       g.TournamentID,
		Name:               g.Name,
		GameStatus:         g.GameStatus,
		GameStartDateTime:  g.GameStartDateTime,
		BuyIn:              g.BuyIn,
		TotalEntries:       g.TotalEntries,
		IsSeries:           g.IsSeries,
		TournamentSeriesID: g.TournamentSeriesID,
		RecurringGameID:    g.RecurringGameID,
	}
}

// PlayerQueue delivers player batches downstream. Messages sharing GroupID are
// processed in order; DeduplicationID makes redelivery of one batch a no-op.
type PlayerQueue interface {
	Enqueue(ctx context.Context, msg PlayerBatchMessage) error
}
