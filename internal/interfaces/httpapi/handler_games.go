package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type saveGameBatchRequest struct {
	Games []usecase.SaveGameInput `json:"games" validate:"required,min=1,max=100"`
}

type saveGameBatchResponse struct {
	Results   []usecase.SaveGameResult `json:"results"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
}

type uploadGameRequest struct {
	EntityID     string `json:"entityId" validate:"required"`
	TournamentID int64  `json:"tournamentId" validate:"required,gt=0"`
	HTML         string `json:"html" validate:"required"`
	WasEdited    bool   `json:"wasEdited"`
}

func (h *Handler) SaveGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SaveGame")
	defer span.End()

	var req usecase.SaveGameInput
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.saver.Save(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "save game failed",
			"entity_id", req.Source.EntityID,
			"tournament_id", req.Game.TournamentID,
			"action", string(result.Action),
			"error", err,
		)
	}
	writeSaveResult(ctx, w, result, err)
}

func (h *Handler) SaveGameBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SaveGameBatch")
	defer span.End()

	var req saveGameBatchRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	results := h.saver.SaveBatch(ctx, req.Games)
	resp := saveGameBatchResponse{Results: results}
	for _, res := range results {
		if res.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	writeSuccess(ctx, w, http.StatusOK, resp)
}

func (h *Handler) UploadGame(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UploadGame")
	defer span.End()

	var req uploadGameRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.runner.ProcessUpload(ctx, usecase.ManualUploadInput{
		EntityID:     req.EntityID,
		TournamentID: req.TournamentID,
		HTML:         req.HTML,
		WasEdited:    req.WasEdited,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "manual upload failed",
			"entity_id", req.EntityID,
			"tournament_id", req.TournamentID,
			"error", err,
		)
	}
	writeSaveResult(ctx, w, result, err)
}

// writeSaveResult always carries the save result so callers see action and warnings on failure too.
func writeSaveResult(ctx context.Context, w http.ResponseWriter, result usecase.SaveGameResult, err error) {
	if err == nil {
		writeSuccess(ctx, w, http.StatusOK, result)
		return
	}
	if result.Message == "" {
		result.Message = err.Error()
	}
	if result.FieldsUpdated == nil {
		result.FieldsUpdated = []string{}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}

	mapped := mapError(ctx, err)
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       result,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: err.Error(),
			Status:  mapped.Status,
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  mapped.Reason,
					Message: fmt.Sprintf("save %s", result.Action),
				},
			},
		},
	})
}
