package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// maxBody caps a decoded federation response. The full IBJJF academy listing fits well under it.
const maxBody = 10 << 20

// ErrBodyTooLarge means a response exceeded maxBody
var ErrBodyTooLarge = errors.New("federation response too large")

// Client issues the GETs every federation fetcher shares
type Client struct {
	http      *http.Client
	userAgent string
	logger    ectologger.Logger
}

type ClientConfig struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	UserAgent       string
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         30 * time.Second,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
		UserAgent:       "gymsync/1.0",
	}
}

func NewClient(cfg ClientConfig, logger ectologger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    cfg.MaxIdleConns,
				IdleConnTimeout: cfg.IdleConnTimeout,
			},
		},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// StatusError is a non-2xx federation response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered %d", e.URL, e.StatusCode)
}

// GetJSON decodes the body at url into plain maps and slices for the fetcher's queries
func (c *Client) GetJSON(ctx context.Context, federation string, url string) (any, error) {
	ctx, span := tracing.StartSpan(ctx, "federation.Client.GetJSON", attribute.String("federation", federation))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log := c.logger.WithContext(ctx).WithFields(map[string]any{"federation": federation, "url": url})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.FederationRequestsTotal.WithLabelValues(federation, "error").Inc()
		tracing.RecordError(span, err)
		log.WithError(err).Warn("Federation request failed")
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	metrics.FederationRequestsTotal.WithLabelValues(federation, strconv.Itoa(resp.StatusCode)).Inc()
	log.WithFields(map[string]any{"status": resp.StatusCode, "took_ms": time.Since(start).Milliseconds()}).Debug("Federation responded")

	if resp.StatusCode/100 != 2 {
		err := &StatusError{StatusCode: resp.StatusCode, URL: url}
		tracing.RecordError(span, err)
		return nil, err
	}
	if resp.ContentLength > maxBody {
		return nil, fmt.Errorf("%s: %w (%d bytes)", url, ErrBodyTooLarge, resp.ContentLength)
	}

	body := &io.LimitedReader{R: resp.Body, N: maxBody + 1}
	var data any
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		if body.N <= 0 {
			return nil, fmt.Errorf("%s: %w", url, ErrBodyTooLarge)
		}
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return data, nil
}
