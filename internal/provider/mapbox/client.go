// Package mapbox implements the geocoding and routing ports against the
// Mapbox Search Box and Directions APIs.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/config"
	"tanktally_backend/platform/logger"

	"golang.org/x/time/rate"
)

const providerName = "mapbox"

// Options configures a Client.
type Options struct {
	AccessToken   string
	SearchURL     string
	DirectionsURL string
	Timeout       time.Duration
	// RPS caps outbound requests per second across all operations. Zero means unlimited.
	RPS float64
	// Limit is the maximum number of suggestions requested per query.
	Limit      int
	HTTPClient *http.Client
}

// Client talks to Mapbox. It is safe for concurrent use.
type Client struct {
	httpClient    *http.Client
	accessToken   string
	searchURL     string
	directionsURL string
	limit         int
	limiter       *rate.Limiter
	log           *logger.Logger
}

// New creates a Mapbox client.
func New(opts Options, log *logger.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	return &Client{
		httpClient:    httpClient,
		accessToken:   opts.AccessToken,
		searchURL:     strings.TrimRight(opts.SearchURL, "/"),
		directionsURL: strings.TrimRight(opts.DirectionsURL, "/"),
		limit:         limit,
		limiter:       limiter,
		log:           log,
	}
}

// NewFromConfig creates a client from the provider configuration.
func NewFromConfig(cfg config.ProviderConfig, suggestLimit int, log *logger.Logger) *Client {
	return New(Options{
		AccessToken:   cfg.GetMapboxAccessToken(),
		SearchURL:     cfg.GetMapboxSearchURL(),
		DirectionsURL: cfg.GetMapboxDirectionsURL(),
		Timeout:       cfg.GetProviderTimeout(),
		RPS:           cfg.GetProviderRPS(),
		Limit:         suggestLimit,
	}, log)
}

// getJSON performs a GET and decodes a 200 response into out. The request
// URL carries the access token, so only op is logged.
func (c *Client) getJSON(ctx context.Context, op, reqURL string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Network("rate limiter wait aborted", err).WithOp(op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "create request", err).WithOp(op)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TankTally/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ProviderCall(providerName, op, 0, time.Since(start), err)
		return apperr.Network("mapbox request failed", err).WithOp(op)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if perr := statusError(resp.StatusCode); perr != nil {
		c.log.ProviderCall(providerName, op, resp.StatusCode, time.Since(start), perr)
		return perr.WithOp(op)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.log.ProviderCall(providerName, op, resp.StatusCode, time.Since(start), err)
			return apperr.Network("mapbox response read timed out", err).WithOp(op)
		}
		c.log.ProviderCall(providerName, op, resp.StatusCode, time.Since(start), err)
		return apperr.Wrap(apperr.KindProvider, "malformed mapbox payload", err).WithOp(op)
	}

	c.log.ProviderCall(providerName, op, resp.StatusCode, time.Since(start), nil)
	return nil
}

func statusError(status int) *apperr.Error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return apperr.NotFound("mapbox resource not found")
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Provider("mapbox rejected the access token")
	case http.StatusTooManyRequests:
		return apperr.Provider("mapbox rate limit exceeded")
	default:
		return apperr.Provider(fmt.Sprintf("mapbox upstream error: %d", status))
	}
}
