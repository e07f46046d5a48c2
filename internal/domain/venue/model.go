package venue

import "fmt"

// Venue is a physical card room owned by an entity.
type Venue struct {
	ID       string
	EntityID string
	Name     string
	Aliases  []string
	Fee      float64
	Active   bool
}

func (v Venue) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("venue id is required")
	}
	if v.EntityID == "" {
		return fmt.Errorf("venue entity id is required")
	}
	if v.Name == "" {
		return fmt.Errorf("venue name is required")
	}
	return nil
}
