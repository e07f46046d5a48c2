package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type reResolveGameRequest struct {
	GameID     string                      `json:"gameId" validate:"required"`
	Preview    bool                        `json:"preview"`
	Force      bool                        `json:"force"`
	Thresholds usecase.RecurringThresholds `json:"thresholds"`
}

type reResolveVenueRequest struct {
	VenueID    string                      `json:"venueId" validate:"required"`
	Preview    bool                        `json:"preview"`
	Force      bool                        `json:"force"`
	Thresholds usecase.RecurringThresholds `json:"thresholds"`
}

type findDuplicatesRequest struct {
	VenueID             string  `json:"venueId" validate:"required_without=EntityID"`
	EntityID            string  `json:"entityId" validate:"required_without=VenueID"`
	SimilarityThreshold float64 `json:"similarityThreshold" validate:"gte=0,lte=1"`
}

type mergeDuplicatesRequest struct {
	CanonicalID  string   `json:"canonicalId" validate:"required"`
	DuplicateIDs []string `json:"duplicateIds" validate:"required,min=1,max=100,dive,required"`
	Preview      bool     `json:"preview"`
}

type cleanupOrphansRequest struct {
	VenueID  string `json:"venueId" validate:"required_without=EntityID"`
	EntityID string `json:"entityId" validate:"required_without=VenueID"`
	Preview  bool   `json:"preview"`
}

type bootstrapRecurringRequest struct {
	EntityID string                `json:"entityId" validate:"required_without=VenueID"`
	VenueID  string                `json:"venueId" validate:"required_without=EntityID"`
	Preview  bool                  `json:"preview"`
	Config   usecase.ClusterConfig `json:"config"`
}

func (h *Handler) ReResolveRecurringGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ReResolveRecurringGame")
	defer span.End()

	var req reResolveGameRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.admin.ReResolveGame(ctx, usecase.ReResolveGameInput{
		GameID:     req.GameID,
		Preview:    req.Preview,
		Force:      req.Force,
		Thresholds: req.Thresholds,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "re-resolve game failed", "game_id", req.GameID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) ReResolveVenueGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ReResolveVenueGames")
	defer span.End()

	var req reResolveVenueRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.admin.ReResolveVenueGames(ctx, usecase.ReResolveVenueInput{
		VenueID:    req.VenueID,
		Preview:    req.Preview,
		Force:      req.Force,
		Thresholds: req.Thresholds,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "re-resolve venue games failed", "venue_id", req.VenueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) FindDuplicateRecurringGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FindDuplicateRecurringGames")
	defer span.End()

	var req findDuplicatesRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.admin.FindDuplicates(ctx, usecase.FindDuplicatesInput{
		VenueID:             req.VenueID,
		EntityID:            req.EntityID,
		SimilarityThreshold: req.SimilarityThreshold,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) MergeDuplicateRecurringGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.MergeDuplicateRecurringGames")
	defer span.End()

	var req mergeDuplicatesRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.admin.MergeDuplicates(ctx, usecase.MergeDuplicatesInput{
		CanonicalID:  req.CanonicalID,
		DuplicateIDs: req.DuplicateIDs,
		Preview:      req.Preview,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "merge duplicate recurring games failed", "canonical_id", req.CanonicalID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) GetRecurringGameStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRecurringGameStats")
	defer span.End()

	q := r.URL.Query()
	stats, err := h.admin.Stats(ctx, usecase.RecurringStatsInput{
		VenueID:  strings.TrimSpace(q.Get("venueId")),
		EntityID: strings.TrimSpace(q.Get("entityId")),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, stats)
}

func (h *Handler) CleanupOrphanRecurringGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CleanupOrphanRecurringGames")
	defer span.End()

	var req cleanupOrphansRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.admin.CleanupOrphans(ctx, usecase.CleanupOrphansInput{
		VenueID:  req.VenueID,
		EntityID: req.EntityID,
		Preview:  req.Preview,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) BootstrapRecurringGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.BootstrapRecurringGames")
	defer span.End()

	var req bootstrapRecurringRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.recurring.Bootstrap(ctx, usecase.BootstrapInput{
		EntityID: req.EntityID,
		VenueID:  req.VenueID,
		Preview:  req.Preview,
		Config:   req.Config,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "bootstrap recurring games failed", "entity_id", req.EntityID, "venue_id", req.VenueID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}
