package recipient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
)

// ErrDistrictUnresolved signals the civics API returned no district for the
// address.
var ErrDistrictUnresolved = errors.New("recipient: district unresolved")

// DistrictResolver maps a postal address to a congressional district. The
// upstream service may be slow or unreliable; callers decide how to degrade.
// No caching happens here: if caching is wanted it belongs to the upstream
// collaborator.
type DistrictResolver interface {
	ResolveDistrict(ctx context.Context, address string) (District, error)
}

// CivicsClient resolves districts via an external civics HTTP API.
type CivicsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCivicsClient creates a civics API client.
func NewCivicsClient(baseURL, apiKey string) *CivicsClient {
	return &CivicsClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type civicsResponse struct {
	Divisions []struct {
		OCDID string `json:"ocdId"`
	} `json:"divisions"`
	Officials []struct {
		Name string `json:"name"`
	} `json:"officials"`
}

// ResolveDistrict looks up the congressional district for an address.
func (c *CivicsClient) ResolveDistrict(ctx context.Context, address string) (District, error) {
	if address == "" {
		return District{}, fmt.Errorf("recipient: empty address")
	}

	params := url.Values{}
	params.Set("address", address)
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/representatives?"+params.Encode(), nil)
	if err != nil {
		return District{}, fmt.Errorf("recipient: build civics request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return District{}, fmt.Errorf("recipient: call civics api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return District{}, fmt.Errorf("recipient: civics api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed civicsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return District{}, fmt.Errorf("recipient: decode civics response: %w", err)
	}
	if len(parsed.Divisions) == 0 {
		return District{}, ErrDistrictUnresolved
	}

	d := District{OCDDistrictID: parsed.Divisions[0].OCDID}
	if len(parsed.Officials) > 0 {
		d.Representative = parsed.Officials[0].Name
	}
	return d, nil
}
