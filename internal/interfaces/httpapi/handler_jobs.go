package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type internalScraperRunRequest struct {
	JobID      string `json:"job_id" validate:"required"`
	EntityID   string `json:"entity_id"`
	DispatchID string `json:"dispatch_id"`
}

type internalScheduledRequest struct {
	Source  string    `json:"source"`
	FiredAt time.Time `json:"firedAt"`
}

type internalScraperRunResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// RunScraperJob executes a queued scraper job inside the request. The job record carries the outcome.
func (h *Handler) RunScraperJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunScraperJob")
	defer span.End()

	var req internalScraperRunRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	runErr := h.runner.Run(ctx, req.JobID)
	if h.dispatches != nil && strings.TrimSpace(req.DispatchID) != "" {
		h.dispatches.RecordCompletion(ctx, req.DispatchID, req.JobID, req.EntityID, runErr)
	}
	if runErr != nil {
		h.logger.WarnContext(ctx, "run scraper job failed", "job_id", req.JobID, "entity_id", req.EntityID, "error", runErr)
		writeError(ctx, w, runErr)
		return
	}

	job, err := h.jobs.Get(ctx, req.JobID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, internalScraperRunResponse{JobID: job.ID, Status: string(job.Status)})
}

func (h *Handler) RunScheduledScrape(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunScheduledScrape")
	defer span.End()

	var req internalScheduledRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(ctx, w, err)
		return
	}

	event := usecase.ScheduledEvent{Source: strings.TrimSpace(req.Source), FiredAt: req.FiredAt}
	if event.Source == "" {
		event.Source = "internal-job"
	}
	if event.FiredAt.IsZero() {
		event.FiredAt = time.Now().UTC()
	}

	result, err := h.jobs.RunScheduled(ctx, event)
	if err != nil {
		h.logger.WarnContext(ctx, "scheduled scrape failed", "source", event.Source, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}
