// Package maps geocodes pickup addresses through the Google Places text
// search endpoint.
package maps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/types"
)

const (
	defaultBaseURL      = "https://places.googleapis.com/v1"
	defaultTimeout      = 10 * time.Second
	searchTextPath      = "places:searchText"
	searchTextFieldMask = "places.id,places.formattedAddress,places.location"
	errorBodyLimit      = 1 << 10
)

var errAPIKeyRequired = errors.New("google maps api key is required")

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if v := strings.TrimSpace(baseURL); v != "" {
			c.baseURL = v
		}
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	c := &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: defaultBaseURL,
		apiKey:  key,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Place is the best match for an address.
type Place struct {
	PlaceID          string
	FormattedAddress string
	Location         types.GeographyPoint
}

type searchTextRequest struct {
	TextQuery string `json:"textQuery"`
	PageSize  int    `json:"pageSize"`
}

type searchTextResponse struct {
	Places []struct {
		ID               string `json:"id"`
		FormattedAddress string `json:"formattedAddress"`
		Location         struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
	} `json:"places"`
}

// statusError is a non-200 answer from Places.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

// Geocode resolves address to its top text-search match. An address Places
// cannot find is a validation error; transport and upstream failures are
// DEPENDENCY_ERROR.
func (c *Client) Geocode(ctx context.Context, address string) (*Place, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	var out searchTextResponse
	if err := c.post(ctx, searchTextPath, searchTextRequest{TextQuery: address, PageSize: 1}, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "geocode request failed")
	}
	if len(out.Places) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address could not be located").
			WithDetails(map[string]any{"address": address})
	}

	top := out.Places[0]
	return &Place{
		PlaceID:          top.ID,
		FormattedAddress: top.FormattedAddress,
		Location:         types.GeographyPoint{Lat: top.Location.Latitude, Lng: top.Location.Longitude},
	}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", searchTextFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
