package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/entity"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/game"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/naming"
	"github.com/riskibarqy/kingsroom-ingest/internal/domain/venue"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
)

const (
	venueConfidenceExplicit  = 1.0
	venueConfidenceExactName = 1.0
	venueConfidenceAlias     = 0.95
	venueConfidenceContains  = 0.7
	venueConfidenceDefault   = 0.5
)

type VenueMatchType string

const (
	VenueMatchExplicit   VenueMatchType = "EXPLICIT"
	VenueMatchExactName  VenueMatchType = "EXACT_NAME"
	VenueMatchAlias      VenueMatchType = "ALIAS"
	VenueMatchContains   VenueMatchType = "CONTAINS"
	VenueMatchDefault    VenueMatchType = "ENTITY_DEFAULT"
	VenueMatchUnassigned VenueMatchType = "UNASSIGNED"
)

type VenueRef struct {
	VenueID   string                `json:"venueId,omitempty"`
	VenueName string                `json:"venueName,omitempty"`
	Status    game.AssignmentStatus `json:"assignmentStatus,omitempty"`
}

type VenueResolution struct {
	VenueID    string                `json:"venueId"`
	VenueName  string                `json:"venueName,omitempty"`
	Status     game.AssignmentStatus `json:"status"`
	Confidence float64               `json:"confidence"`
	VenueFee   float64               `json:"venueFee"`
	MatchType  VenueMatchType        `json:"matchType"`
}

type VenueResolver struct {
	venueRepo  venue.Repository
	entityRepo entity.Repository
	logger     *logging.Logger
}

func NewVenueResolver(venueRepo venue.Repository, entityRepo entity.Repository, logger *logging.Logger) *VenueResolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &VenueResolver{venueRepo: venueRepo, entityRepo: entityRepo, logger: logger}
}

// Resolve maps a venue reference to a canonical venue of entityID.
func (r *VenueResolver) Resolve(ctx context.Context, entityID string, ref VenueRef) (VenueResolution, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.VenueResolver.Resolve")
	defer span.End()

	venues, err := r.venueRepo.ListByEntity(ctx, entityID)
	if err != nil {
		return VenueResolution{}, fmt.Errorf("list venues entity=%s: %w", entityID, err)
	}

	if id := strings.TrimSpace(ref.VenueID); id != "" && id != game.UnassignedVenueID {
		status := game.AssignmentManual
		if ref.Status == game.AssignmentAutoAssigned {
			status = game.AssignmentAutoAssigned
		}
		for _, v := range venues {
			if v.ID == id {
				return resolved(v, status, venueConfidenceExplicit, VenueMatchExplicit), nil
			}
		}
		r.logger.WarnContext(ctx, "explicit venue not owned by entity, falling back to name match",
			"entity_id", entityID,
			"venue_id", id,
		)
	}

	if name := naming.NormalizeVenueName(ref.VenueName); name != "" {
		if res, ok := matchVenueName(venues, name); ok {
			return res, nil
		}
	}

	ent, exists, err := r.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return VenueResolution{}, fmt.Errorf("get entity=%s: %w", entityID, err)
	}
	if exists && ent.DefaultVenueID != "" && ent.DefaultVenueID != game.UnassignedVenueID {
		for _, v := range venues {
			if v.ID == ent.DefaultVenueID {
				return resolved(v, game.AssignmentAutoAssigned, venueConfidenceDefault, VenueMatchDefault), nil
			}
		}
	}

	return VenueResolution{
		VenueID:   game.UnassignedVenueID,
		Status:    game.AssignmentPending,
		MatchType: VenueMatchUnassigned,
	}, nil
}

// matchVenueName tries exact name, then alias, then containment in either direction.
func matchVenueName(venues []venue.Venue, name string) (VenueResolution, bool) {
	for _, v := range venues {
		if v.ID != game.UnassignedVenueID && naming.NormalizeVenueName(v.Name) == name {
			return resolved(v, game.AssignmentAutoAssigned, venueConfidenceExactName, VenueMatchExactName), true
		}
	}
	for _, v := range venues {
		if v.ID == game.UnassignedVenueID {
			continue
		}
		for _, alias := range v.Aliases {
			if naming.NormalizeVenueName(alias) == name {
				return resolved(v, game.AssignmentAutoAssigned, venueConfidenceAlias, VenueMatchAlias), true
			}
		}
	}
	for _, v := range venues {
		if v.ID == game.UnassignedVenueID {
			continue
		}
		candidate := naming.NormalizeVenueName(v.Name)
		if candidate == "" {
			continue
		}
		if strings.Contains(name, candidate) || strings.Contains(candidate, name) {
			return resolved(v, game.AssignmentAutoAssigned, venueConfidenceContains, VenueMatchContains), true
		}
	}
	return VenueResolution{}, false
}

func resolved(v venue.Venue, status game.AssignmentStatus, confidence float64, match VenueMatchType) VenueResolution {
	return VenueResolution{
		VenueID:    v.ID,
		VenueName:  v.Name,
		Status:     status,
		Confidence: confidence,
		VenueFee:   v.Fee,
		MatchType:  match,
	}
}
