package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/usecase"
)

const maxRequestBodyBytes = 8 << 20

// Services groups the use cases served over HTTP. Dispatches is optional and only set
// when scraper runs are dispatched through the job queue.
type Services struct {
	Saver      *usecase.GameSaver
	Runner     *usecase.ScrapeRunner
	Jobs       *usecase.ScraperJobService
	URLs       *usecase.ScrapeURLService
	Gaps       *usecase.GapTracker
	Admin      *usecase.AdminService
	Recurring  *usecase.RecurringService
	Dispatches *usecase.QueueDispatcher
}

type Handler struct {
	saver      *usecase.GameSaver
	runner     *usecase.ScrapeRunner
	jobs       *usecase.ScraperJobService
	urls       *usecase.ScrapeURLService
	gaps       *usecase.GapTracker
	admin      *usecase.AdminService
	recurring  *usecase.RecurringService
	dispatches *usecase.QueueDispatcher
	logger     *logging.Logger
	validator  *validator.Validate
}

func NewHandler(services Services, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		saver:      services.Saver,
		runner:     services.Runner,
		jobs:       services.Jobs,
		urls:       services.URLs,
		gaps:       services.Gaps,
		admin:      services.Admin,
		recurring:  services.Recurring,
		dispatches: services.Dispatches,
		logger:     logger,
		validator:  validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeBody fills dst from the request body. An empty body leaves dst untouched when allowEmpty is set.
func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	decoder := jsoniter.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidInput, key)
	}
	return v, nil
}

func queryOptionalInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidInput, key)
	}
	return &v, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", usecase.ErrInvalidInput, key)
	}
	return v, nil
}

func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
