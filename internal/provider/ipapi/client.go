// Package ipapi resolves a network origin to an approximate place using the
// ipapi.co JSON API.
package ipapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"tanktally_backend/internal/ports"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/logger"
)

const providerName = "ipapi"

// Client looks up origins over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *logger.Logger
}

type lookupResponse struct {
	IP          string `json:"ip"`
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// New creates a client against baseURL, e.g. https://ipapi.co.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
}

// LocateByOrigin looks up ipHint, or the caller's own address when ipHint is
// empty or not routable.
func (c *Client) LocateByOrigin(ctx context.Context, ipHint string) (ports.Origin, error) {
	reqURL := c.baseURL + "/json/"
	if ip := publicIP(ipHint); ip != "" {
		reqURL = fmt.Sprintf("%s/%s/json/", c.baseURL, ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ports.Origin{}, apperr.Wrap(apperr.KindInternal, "create request", err).WithOp("locate")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TankTally/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.ProviderCall(providerName, "locate", 0, time.Since(start), err)
		return ports.Origin{}, apperr.Network("ip lookup failed", err).WithOp("locate")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		perr := apperr.Provider(fmt.Sprintf("ip lookup returned %d", resp.StatusCode))
		c.log.ProviderCall(providerName, "locate", resp.StatusCode, time.Since(start), perr)
		return ports.Origin{}, perr.WithOp("locate")
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.log.ProviderCall(providerName, "locate", resp.StatusCode, time.Since(start), err)
		return ports.Origin{}, apperr.Wrap(apperr.KindProvider, "malformed ip lookup payload", err).WithOp("locate")
	}
	c.log.ProviderCall(providerName, "locate", resp.StatusCode, time.Since(start), nil)

	if payload.Error {
		return ports.Origin{}, apperr.Provider("ip lookup rejected: " + payload.Reason).WithOp("locate")
	}

	origin := ports.Origin{
		IP:      payload.IP,
		City:    payload.City,
		Region:  payload.Region,
		Country: payload.CountryName,
	}
	if origin.RegionName() == "" {
		return ports.Origin{}, apperr.NotFound("ip lookup returned no place").WithOp("locate")
	}
	return origin, nil
}

// publicIP returns hint when it is a globally routable address. Loopback and
// private addresses would be rejected by the provider anyway.
func publicIP(hint string) string {
	ip := net.ParseIP(strings.TrimSpace(hint))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return ""
	}
	return ip.String()
}

var _ ports.OriginLocator = (*Client)(nil)
