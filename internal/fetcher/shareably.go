package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"adbudget/internal/analytics"
)

const (
	insightsPath      = "/ad-insights/"
	adPath            = "/ad/"
	defaultBaseURL    = "http://api.shareably.net:3030"
	defaultUserAgent  = "adbudget/1.0"
	maxErrorBodyBytes = 1024
	maxBackoff        = 30 * time.Second
)

var (
	// ErrBudgetMissing indicates a budget response without a budget field.
	ErrBudgetMissing = errors.New("budget missing from response")
	// ErrNegativeBudget indicates the source reported a budget below zero.
	ErrNegativeBudget = errors.New("budget is negative")
)

// ShareablyOptions parameterise the Shareably API client.
type ShareablyOptions struct {
	BaseURL           string
	AccessToken       string
	Timeout           time.Duration
	UserAgent         string
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
}

// Shareably fetches ad insights and budgets from the Shareably API.
type Shareably struct {
	opts    ShareablyOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewShareably constructs an API client.
func NewShareably(opts ShareablyOptions, logger zerolog.Logger) *Shareably {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Shareably{
		opts:    opts,
		logger:  logger.With().Str("component", "shareably_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		baseURL: baseURL,
	}
}

// FetchInsights requests the given metrics for every ad active on date.
func (s *Shareably) FetchInsights(ctx context.Context, date time.Time, metrics []string) ([]InsightRow, error) {
	if len(metrics) == 0 {
		return nil, errors.New("at least one metric required")
	}

	query := url.Values{}
	query.Set("accessToken", s.opts.AccessToken)
	query.Set("date", date.Format(analytics.DateLayout))
	query.Set("metrics", strings.Join(metrics, ","))

	payload, err := s.get(ctx, s.baseURL+insightsPath, query)
	if err != nil {
		return nil, fmt.Errorf("fetch insights for %s: %w", date.Format(analytics.DateLayout), err)
	}

	rows, skipped, err := decodeInsightRows(payload, metrics)
	if err != nil {
		return nil, fmt.Errorf("decode insights for %s: %w", date.Format(analytics.DateLayout), err)
	}
	if skipped > 0 {
		s.logger.Debug().Str("date", date.Format(analytics.DateLayout)).Int("skipped", skipped).Msg("insight rows without id ignored")
	}
	return rows, nil
}

// FetchBudget requests the current budget of adID.
func (s *Shareably) FetchBudget(ctx context.Context, adID string) (decimal.Decimal, error) {
	if strings.TrimSpace(adID) == "" {
		return decimal.Decimal{}, errors.New("ad id required")
	}

	query := url.Values{}
	query.Set("accessToken", s.opts.AccessToken)

	payload, err := s.get(ctx, s.baseURL+adPath+url.PathEscape(adID)+"/", query)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("fetch budget for ad %s: %w", adID, err)
	}

	var res budgetResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode budget for ad %s: %w", adID, err)
	}
	if res.Budget == nil {
		return decimal.Decimal{}, fmt.Errorf("ad %s: %w", adID, ErrBudgetMissing)
	}
	if res.Budget.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("ad %s: %w", adID, ErrNegativeBudget)
	}
	return *res.Budget, nil
}

type budgetResponse struct {
	Budget *decimal.Decimal `json:"budget"`
}

func (s *Shareably) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, s.backoff(attempt)); err != nil {
				return nil, err
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		payload, retry, err := s.do(ctx, endpoint, query)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if !retry {
			break
		}
		s.logger.Debug().Err(err).Int("attempt", attempt+1).Str("endpoint", endpoint).Msg("request failed, retrying")
	}
	return nil, lastErr
}

func (s *Shareably) do(ctx context.Context, endpoint string, query url.Values) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, false, nil
}

// backoff grows exponentially from RetryBackoff, capped at maxBackoff, with
// up to 50% jitter.
func (s *Shareably) backoff(attempt int) time.Duration {
	base := s.opts.RetryBackoff
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	d := base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	d = min(d, maxBackoff)
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("shareably api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("shareably api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		if len(payload) > maxErrorBodyBytes {
			payload = payload[:maxErrorBodyBytes]
		}
		return fmt.Errorf("shareably api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("shareably api error (%d)", status)
}

var (
	_ InsightFetcher = (*Shareably)(nil)
	_ BudgetFetcher  = (*Shareably)(nil)
)
