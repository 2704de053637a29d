package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fare-alerts/internal/model"
)

const (
	searchPath = "/search"
	// A leg fetch that exceeds this is aborted; the error propagates and the
	// monitor's refresh for the cycle is abandoned.
	defaultFetchTimeout = 30 * time.Second
)

// AwardOptions parameterise the award-search client.
type AwardOptions struct {
	BaseURL   string
	TokenPath string
	Source    string
	OrderBy   string
	Timeout   time.Duration
	UserAgent string
}

// Award queries the award-search API for per-date availability.
type Award struct {
	opts     AwardOptions
	logger   zerolog.Logger
	client   *http.Client
	baseURL  string
	token    string
	tokenMux sync.Mutex
}

// NewAward constructs an award-search client.
func NewAward(opts AwardOptions, logger zerolog.Logger) *Award {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://seats.aero/partnerapi"
	}

	return &Award{
		opts:    opts,
		logger:  logger.With().Str("component", "award_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchLeg issues one availability query for the leg and returns normalized
// flights for the requested cabins under the given mode.
func (a *Award) FetchLeg(ctx context.Context, leg model.Leg, cabins []model.Cabin, mode model.AvailabilityMode) ([]model.Flight, error) {
	if len(cabins) == 0 {
		return nil, errors.New("at least one cabin required")
	}

	token, err := a.getToken()
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(cabins))
	for _, cabin := range cabins {
		codes = append(codes, cabin.Code())
	}

	orderBy := a.opts.OrderBy
	if orderBy == "" {
		orderBy = "lowest_mileage"
	}

	params := url.Values{}
	params.Set("origin_airport", leg.Origin)
	params.Set("destination_airport", leg.Destination)
	params.Set("start_date", leg.DateFrom)
	params.Set("end_date", leg.DateTo)
	params.Set("cabin", strings.Join(codes, ","))
	params.Set("order_by", orderBy)
	if a.opts.Source != "" {
		params.Set("source", a.opts.Source)
	}

	endpoint := a.baseURL + searchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if ua := strings.TrimSpace(a.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "farewatch/1.0")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("award search %s: %w", leg.String(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var result searchResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode award search response: %w", err)
	}

	flights := normalize(result.Data, cabins, mode)
	a.logger.Debug().
		Str("leg", leg.String()).
		Int("days", len(result.Data)).
		Int("flights", len(flights)).
		Msg("leg fetched")
	return flights, nil
}

// getToken reads the bearer credential from the configured secret file once
// and caches it for the life of the client.
func (a *Award) getToken() (string, error) {
	a.tokenMux.Lock()
	defer a.tokenMux.Unlock()

	if a.token != "" {
		return a.token, nil
	}
	if a.opts.TokenPath == "" {
		return "", errors.New("award api token path not configured")
	}

	raw, err := os.ReadFile(a.opts.TokenPath)
	if err != nil {
		return "", fmt.Errorf("read award api token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("award api token file %s is empty", a.opts.TokenPath)
	}
	a.token = token
	return token, nil
}

type searchResponse struct {
	Data    []rawTripDay `json:"data"`
	Count   int          `json:"count"`
	HasMore bool         `json:"hasMore"`
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("award api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("award api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("award api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("award api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("award api error (%d)", status)
}

var _ LegFetcher = (*Award)(nil)
