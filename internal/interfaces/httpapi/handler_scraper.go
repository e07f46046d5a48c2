package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scraperjob"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type startScraperJobRequest struct {
	EntityID    string                `json:"entityId" validate:"required"`
	Mode        string                `json:"mode" validate:"required,oneof=bulk range gaps updates"`
	StartID     *int64                `json:"startId" validate:"omitempty,gt=0"`
	EndID       *int64                `json:"endId" validate:"omitempty,gt=0"`
	MaxID       *int64                `json:"maxId" validate:"omitempty,gt=0"`
	GapIDs      []int64               `json:"gapIds" validate:"omitempty,max=5000,dive,gt=0"`
	BulkCount   *int                  `json:"bulkCount" validate:"omitempty,gt=0,lte=10000"`
	Thresholds  scraperjob.Thresholds `json:"thresholds"`
	Options     scraperjob.Options    `json:"options"`
	TriggeredBy string                `json:"triggeredBy" validate:"max=100"`
}

func (h *Handler) StartScraperJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.StartScraperJob")
	defer span.End()

	var req startScraperJobRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	triggeredBy := strings.TrimSpace(req.TriggeredBy)
	if triggeredBy == "" {
		triggeredBy = "api"
	}
	job, err := h.jobs.Start(ctx, usecase.StartJobInput{
		EntityID:    req.EntityID,
		Mode:        scraperjob.Mode(req.Mode),
		StartID:     req.StartID,
		EndID:       req.EndID,
		MaxID:       req.MaxID,
		GapIDs:      req.GapIDs,
		BulkCount:   req.BulkCount,
		Thresholds:  req.Thresholds,
		Options:     req.Options,
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "start scraper job failed", "entity_id", req.EntityID, "mode", req.Mode, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, jobToDTO(job))
}

func (h *Handler) CancelScraperJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelScraperJob")
	defer span.End()

	jobID := strings.TrimSpace(r.PathValue("jobID"))
	job, err := h.jobs.Cancel(ctx, jobID)
	if err != nil {
		h.logger.WarnContext(ctx, "cancel scraper job failed", "job_id", jobID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, jobToDTO(job))
}

func (h *Handler) GetScraperJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetScraperJob")
	defer span.End()

	jobID := strings.TrimSpace(r.PathValue("jobID"))
	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := jobDetailDTO{jobDTO: jobToDTO(job)}
	if h.dispatches != nil {
		events, err := h.dispatches.Events(ctx, jobID)
		if err != nil {
			h.logger.WarnContext(ctx, "list job dispatch events failed", "job_id", jobID, "error", err)
		}
		resp.Dispatches = dispatchEventsToDTO(events)
	}

	writeSuccess(ctx, w, http.StatusOK, resp)
}

func (h *Handler) ListScraperJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListScraperJobs")
	defer span.End()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	q := r.URL.Query()
	report, err := h.jobs.Report(ctx, usecase.JobReportInput{
		EntityID:  strings.TrimSpace(q.Get("entityId")),
		Status:    scraperjob.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Limit:     limit,
		PageToken: strings.TrimSpace(q.Get("pageToken")),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := jobReportDTO{
		Items:         make([]jobDTO, 0, len(report.Items)),
		NextPageToken: report.NextPageToken,
		CountByStatus: make(map[string]int, len(report.CountByStatus)),
	}
	for _, j := range report.Items {
		resp.Items = append(resp.Items, jobToDTO(j))
	}
	for status, n := range report.CountByStatus {
		resp.CountByStatus[string(status)] = n
	}

	writeSuccess(ctx, w, http.StatusOK, resp)
}

func (h *Handler) GetScraperMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetScraperMetrics")
	defer span.End()

	q := r.URL.Query()
	timeRange := usecase.MetricsTimeRange(strings.ToUpper(strings.TrimSpace(q.Get("timeRange"))))
	metrics, err := h.jobs.Metrics(ctx, timeRange, strings.TrimSpace(q.Get("entityId")))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, metrics)
}
