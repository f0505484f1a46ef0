// Package geocode turns occurrence coordinates into a human readable street
// address using a Nominatim compatible reverse geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/occurrence-client/internal/config"
	"github.com/spec-kit/occurrence-client/internal/domain"
	apperrors "github.com/spec-kit/occurrence-client/pkg/util"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Address is the subset of a Nominatim address we display.
type Address struct {
	Road     string `json:"road"`
	Suburb   string `json:"suburb"`
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

// Locality returns the most specific settlement name available.
func (a Address) Locality() string {
	for _, v := range []string{a.City, a.Town, a.Village} {
		if v != "" {
			return v
		}
	}
	return ""
}

type reverseResponse struct {
	DisplayName string   `json:"display_name"`
	Address     *Address `json:"address"`
	Error       string   `json:"error"`
}

// Client calls the reverse geocoder.
type Client struct {
	baseURL   string
	userAgent string
	doer      Doer
	logger    *zap.Logger
}

// New builds a client. A nil doer uses http.DefaultClient.
func New(cfg config.GeocodeConfig, doer Doer, logger *zap.Logger) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		doer:      doer,
		logger:    logger,
	}
}

// Reverse looks up the address at loc.
func (c *Client) Reverse(ctx context.Context, loc domain.Location) (*Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apperrors.FromStatus(resp.StatusCode, "")
	}

	var out reverseResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperrors.NewDecodeError("reverse geocode", err)
	}
	if out.Error != "" {
		return nil, apperrors.NewNotFound("address", map[string]any{"reason": out.Error})
	}
	if out.Address == nil {
		return nil, apperrors.NewNotFound("address", nil)
	}
	return out.Address, nil
}

// Describe renders the address at loc as "road - city, state". Lookup
// failures are logged and yield a fallback naming the coordinates; a nil
// location yields "location not provided".
func (c *Client) Describe(ctx context.Context, loc *domain.Location) string {
	if loc == nil {
		return "location not provided"
	}
	addr, err := c.Reverse(ctx, *loc)
	if err != nil {
		c.logger.Warn("reverse geocode failed",
			zap.Float64("lat", loc.Latitude),
			zap.Float64("lon", loc.Longitude),
			zap.Error(err))
		return notFound(*loc)
	}
	return fmt.Sprintf("%s - %s, %s", addr.Road, addr.Locality(), addr.State)
}

func notFound(loc domain.Location) string {
	return fmt.Sprintf("address not found for location (%v, %v)", loc.Latitude, loc.Longitude)
}
