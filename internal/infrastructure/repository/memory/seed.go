package memory

import (
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/series"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
)

const (
	SeedEntityID = "kingsroom"
	seedVenueID  = "kingsroom-main"
)

func SeedEntities() []entity.Entity {
	return []entity.Entity{
		{
			ID:              SeedEntityID,
			Name:            "Kings Room",
			DefaultVenueID:  seedVenueID,
			GameURLTemplate: "https://kingsroom.com.au/tournament/?id={id}",
			Active:          true,
		},
	}
}

func SeedVenues() []venue.Venue {
	return []venue.Venue{
		{ID: game.UnassignedVenueID, EntityID: SeedEntityID, Name: "Unassigned", Active: true},
		{
			ID:       seedVenueID,
			EntityID: SeedEntityID,
			Name:     "Kings Room Main",
			Aliases:  []string{"Kings Room", "KR Main"},
			Active:   true,
		},
		{
			ID:       "kingsroom-sutherland",
			EntityID: SeedEntityID,
			Name:     "Sutherland Club",
			Aliases:  []string{"Sutherland"},
			Fee:      10,
			Active:   true,
		},
	}
}

func SeedSeriesTitles() []series.Title {
	return []series.Title{
		{ID: "title-championship", Title: "Championship Series", Aliases: []string{"KRCS"}, Category: "MAJOR"},
		{ID: "title-festival", Title: "Poker Festival", Category: "FESTIVAL"},
	}
}
