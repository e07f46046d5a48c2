package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type tournamentIDsResponse struct {
	EntityID string  `json:"entityId"`
	IDs      []int64 `json:"ids"`
	Count    int     `json:"count"`
}

func (h *Handler) GetTournamentIDBounds(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetTournamentIDBounds")
	defer span.End()

	entityID := strings.TrimSpace(r.PathValue("entityID"))
	bounds, err := h.gaps.Bounds(ctx, entityID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, bounds)
}

func (h *Handler) GetEntityScrapingStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetEntityScrapingStatus")
	defer span.End()

	entityID := strings.TrimSpace(r.PathValue("entityID"))
	forceRefresh, err := queryBool(r, "forceRefresh")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	startID, endID, err := idRangeFromQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	in := usecase.EntityStatusInput{EntityID: entityID, ForceRefresh: forceRefresh, StartID: startID, EndID: endID}
	if err := h.validateRequest(ctx, in); err != nil {
		writeError(ctx, w, err)
		return
	}

	status, err := h.gaps.EntityScrapingStatus(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "entity scraping status failed", "entity_id", entityID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, status)
}

func (h *Handler) FindTournamentIDGaps(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FindTournamentIDGaps")
	defer span.End()

	entityID := strings.TrimSpace(r.PathValue("entityID"))
	startID, endID, err := idRangeFromQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	maxGaps, err := queryInt(r, "maxGapsToReturn", 1000)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	report, err := h.gaps.TournamentIDGaps(ctx, entityID, startID, endID, maxGaps)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, report)
}

func (h *Handler) ListUnfinishedGames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListUnfinishedGames")
	defer span.End()

	entityID := strings.TrimSpace(r.PathValue("entityID"))
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	page, err := h.gaps.UnfinishedGames(ctx, entityID, limit, strings.TrimSpace(r.URL.Query().Get("pageToken")))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := gamePageDTO{Items: make([]gameSummaryDTO, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, g := range page.Items {
		resp.Items = append(resp.Items, gameToSummaryDTO(g))
	}
	writeSuccess(ctx, w, http.StatusOK, resp)
}

func (h *Handler) ListExistingTournamentIDs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListExistingTournamentIDs")
	defer span.End()

	entityID := strings.TrimSpace(r.PathValue("entityID"))
	startID, endID, err := idRangeFromQuery(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	limit, err := queryInt(r, "limit", 1000)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	ids, err := h.gaps.ExistingTournamentIDs(ctx, entityID, startID, endID, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	writeSuccess(ctx, w, http.StatusOK, tournamentIDsResponse{EntityID: entityID, IDs: ids, Count: len(ids)})
}

func idRangeFromQuery(r *http.Request) (*int64, *int64, error) {
	startID, err := queryOptionalInt64(r, "startId")
	if err != nil {
		return nil, nil, err
	}
	endID, err := queryOptionalInt64(r, "endId")
	if err != nil {
		return nil, nil, err
	}
	return startID, endID, nil
}
