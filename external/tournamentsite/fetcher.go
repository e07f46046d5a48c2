package tournamentsite

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/riskibarqy/kingsroom-ingest/internal/domain/scrape"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/logging"
	"github.com/riskibarqy/kingsroom-ingest/internal/platform/resilience"
)

const (
	defaultUserAgent = "kingsroom-ingest/1.0 (+tournament-scraper)"
	defaultTimeout   = 10 * time.Second
	maxPageBodyBytes = 8 << 20
	defaultRetryBase = 500 * time.Millisecond
	defaultRetryCeil = 5 * time.Second
)

var errFetchTransient = crerr.New("tournament site transient failure")

type FetcherConfig struct {
	Client         *fasthttp.Client
	Timeout        time.Duration
	UserAgent      string
	MaxRetries     int
	RetryBaseDelay time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
	Logger         *logging.Logger
}

// Fetcher downloads tournament pages over fasthttp. It retries transport
// failures and 5xx responses; a 404 is reported as scrape.ErrPageNotFound.
type Fetcher struct {
	client    *fasthttp.Client
	timeout   time.Duration
	userAgent string
	retry     resilience.RetryPolicy
	breaker   *resilience.CircuitBreaker
	logger    *logging.Logger
	now       func() time.Time
}

var _ scrape.Fetcher = (*Fetcher)(nil)

func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.Client
	if client == nil {
		client = &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxConnsPerHost:     32,
			MaxResponseBodySize: maxPageBodyBytes,
		}
	}
	base := cfg.RetryBaseDelay
	if base <= 0 {
		base = defaultRetryBase
	}

	return &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: userAgent,
		retry: resilience.RetryPolicy{
			MaxAttempts: maxInt(cfg.MaxRetries, 0) + 1,
			BaseDelay:   base,
			MaxDelay:    defaultRetryCeil,
		},
		breaker: resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker),
		logger:  logger,
		now:     time.Now,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.FetchResult, error) {
	ctx, span := otel.Tracer("tournamentsite").Start(ctx, "tournamentsite.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", url))

	url = strings.TrimSpace(url)
	if url == "" {
		return scrape.FetchResult{}, crerr.New("tournament url is required")
	}

	var out scrape.FetchResult
	err := resilience.Retry(ctx, f.retry, func(ctx context.Context, attempt int) error {
		callErr := f.breaker.Execute(func() error {
			res, err := f.do(ctx, url)
			if err != nil {
				return err
			}
			out = res
			return nil
		}, isTransient)
		if callErr == nil {
			return nil
		}
		if !isTransient(callErr) {
			return resilience.Permanent(callErr)
		}
		f.logger.DebugContext(ctx, "tournament fetch attempt failed", "url", url, "attempt", attempt, "error", callErr)
		return callErr
	})
	if err != nil {
		if !stderrors.Is(err, scrape.ErrPageNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return scrape.FetchResult{}, err
	}
	span.SetAttributes(attribute.Int("http.status_code", out.StatusCode), attribute.Int("http.response_size", len(out.Body)))
	return out, nil
}

func (f *Fetcher) do(ctx context.Context, url string) (scrape.FetchResult, error) {
	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return scrape.FetchResult{}, ctx.Err()
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	started := f.now()
	if err := f.client.DoTimeout(req, resp, timeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scrape.FetchResult{}, ctxErr
		}
		return scrape.FetchResult{}, fmt.Errorf("%w: get %s: %v", errFetchTransient, url, err)
	}
	latency := f.now().Sub(started)

	status := resp.StatusCode()
	switch {
	case status == fasthttp.StatusNotFound || status == fasthttp.StatusGone:
		return scrape.FetchResult{}, fmt.Errorf("%w: status=%d url=%s", scrape.ErrPageNotFound, status, url)
	case isRetryableStatus(status):
		return scrape.FetchResult{}, fmt.Errorf("%w: status=%d url=%s", errFetchTransient, status, url)
	case status < 200 || status >= 300:
		return scrape.FetchResult{}, crerr.Newf("unexpected status=%d url=%s", status, url)
	}

	// resp is released on return; the body must be copied out.
	body := append([]byte(nil), resp.Body()...)
	return scrape.FetchResult{
		URL:        url,
		StatusCode: status,
		Body:       body,
		FetchedAt:  started.UTC(),
		Latency:    latency,
	}, nil
}

func isTransient(err error) bool {
	return err != nil && stderrors.Is(err, errFetchTransient)
}

func isRetryableStatus(code int) bool {
	return code == fasthttp.StatusRequestTimeout ||
		code == fasthttp.StatusTooManyRequests ||
		code >= fasthttp.StatusInternalServerError
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
