// Package steam talks to the store's public catalog and app-details APIs.
package steam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"releasehub/internal/logging"
	"releasehub/internal/metrics"
)

var (
	ErrRateLimited      = errors.New("steam: rate limited")
	ErrForbidden        = errors.New("steam: forbidden")
	ErrUnexpectedStatus = errors.New("steam: unexpected status")
	ErrMalformed        = errors.New("steam: malformed response")
	// ErrUnavailable means the details breaker is open and no request was sent.
	ErrUnavailable = errors.New("steam: details endpoint unavailable")
)

type Config struct {
	APIKey         string
	CatalogURL     string
	AppListURL     string
	DetailsURL     string
	Country        string
	Language       string
	RequestTimeout time.Duration
	PageSize       int

	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Details]
	log     zerolog.Logger
}

// BreakerTimeout is how long the details breaker stays open once tripped.
func (c *Client) BreakerTimeout() time.Duration { return c.cfg.BreakerTimeout }

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10000
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 10
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		log:  logging.Component("steam"),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*Details](gobreaker.Settings{
		Name:    "appdetails",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// per-title answers and 429s are not upstream failures; 429s have their own backoff
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrForbidden) ||
				errors.Is(err, ErrMalformed) ||
				errors.Is(err, ErrRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
			c.log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})
	return c
}

// get performs one GET and returns the body of a 200 response. Non-200
// statuses map to the package's sentinel errors.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstream(endpoint, 0)
		return nil, fmt.Errorf("%s: request: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstream(endpoint, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", endpoint, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s: %w", endpoint, ErrRateLimited)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w", endpoint, ErrForbidden)
	default:
		return nil, fmt.Errorf("%s: %w %d", endpoint, ErrUnexpectedStatus, resp.StatusCode)
	}
}

func withQuery(base string, q url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", base, err)
	}
	existing := u.Query()
	for k, vs := range q {
		for _, v := range vs {
			existing.Add(k, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
