package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity is a tenant: one operator whose tournament site is scraped.
type Entity struct {
	ID             string
	Name           string
	DefaultVenueID string
	// GameURLTemplate holds the page address with an {id} placeholder.
	GameURLTemplate string
	Active          bool
}

const tournamentIDPlaceholder = "{id}"

func (e Entity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entity id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if !strings.Contains(e.GameURLTemplate, tournamentIDPlaceholder) {
		return fmt.Errorf("entity game url template must contain %s", tournamentIDPlaceholder)
	}
	return nil
}

// GameURL renders the page address for a tournament id.
func (e Entity) GameURL(tournamentID int64) string {
	return strings.ReplaceAll(e.GameURLTemplate, tournamentIDPlaceholder, strconv.FormatInt(tournamentID, 10))
}
