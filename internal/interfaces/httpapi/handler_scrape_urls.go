package httpapi

import (
	"net/http"
	"strings"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrapeurl"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

type modifyScrapeURLRequest struct {
	URL         string  `json:"url" validate:"required,url"`
	Status      *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE DO_NOT_SCRAPE ERROR NOT_FOUND"`
	DoNotScrape *bool   `json:"doNotScrape"`
}

type bulkModifyScrapeURLsRequest struct {
	URLs        []string `json:"urls" validate:"required,min=1,max=500,dive,required"`
	Status      *string  `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE DO_NOT_SCRAPE ERROR NOT_FOUND"`
	DoNotScrape *bool    `json:"doNotScrape"`
}

func (h *Handler) SearchScrapeURLs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SearchScrapeURLs")
	defer span.End()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.urls.Search(ctx, usecase.ScrapeURLSearchInput{
		EntityID:  strings.TrimSpace(q.Get("entityId")),
		EntityIDs: queryList(r, "entityIds"),
		Status:    scrapeurl.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
		Limit:     limit,
		PageToken: strings.TrimSpace(q.Get("pageToken")),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scrapeURLPageDTO{
		Items:         scrapeURLsToDTO(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *Handler) ListUpdateCandidateURLs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListUpdateCandidateURLs")
	defer span.End()

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	candidates, err := h.urls.UpdateCandidates(ctx, strings.TrimSpace(r.URL.Query().Get("entityId")), limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	items := make([]updateCandidateDTO, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, updateCandidateDTO{scrapeURLDTO: scrapeURLToDTO(c.ScrapeURL), Priority: c.Priority})
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetScrapeURLDetails(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetScrapeURLDetails")
	defer span.End()

	url := strings.TrimSpace(r.URL.Query().Get("url"))
	details, err := h.urls.Details(ctx, url)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	attempts := make([]attemptDTO, 0, len(details.RecentAttempts))
	for _, a := range details.RecentAttempts {
		attempts = append(attempts, attemptToDTO(a))
	}
	writeSuccess(ctx, w, http.StatusOK, scrapeURLDetailsDTO{
		ScrapeURL:      scrapeURLToDTO(details.ScrapeURL),
		RecentAttempts: attempts,
	})
}

func (h *Handler) ModifyScrapeURLStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ModifyScrapeURLStatus")
	defer span.End()

	var req modifyScrapeURLRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	updated, err := h.urls.ModifyStatus(ctx, usecase.ModifyScrapeURLInput{
		URL:         req.URL,
		Status:      statusPtr(req.Status),
		DoNotScrape: req.DoNotScrape,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "modify scrape url failed", "url", req.URL, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, scrapeURLToDTO(updated))
}

func (h *Handler) BulkModifyScrapeURLs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.BulkModifyScrapeURLs")
	defer span.End()

	var req bulkModifyScrapeURLsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	result, err := h.urls.BulkModify(ctx, usecase.BulkModifyScrapeURLsInput{
		URLs:        req.URLs,
		Status:      statusPtr(req.Status),
		DoNotScrape: req.DoNotScrape,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func statusPtr(v *string) *scrapeurl.Status {
	if v == nil {
		return nil
	}
	s := scrapeurl.Status(strings.ToUpper(strings.TrimSpace(*v)))
	return &s
}
