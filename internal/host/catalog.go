package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/clean-dependency-project/cdpanel/internal/protocol"
	"github.com/clean-dependency-project/cdpanel/internal/reconcile"
)

const (
	// DefaultCatalogTimeout is the default HTTP client timeout.
	DefaultCatalogTimeout = 30 * time.Second

	// DefaultUserAgent is the default User-Agent header.
	DefaultUserAgent = "cdpanel/1.0"
)

// Catalog API errors.
var (
	ErrOfferingNotFound = fmt.Errorf("offering not found")
	ErrCatalogBaseURL   = fmt.Errorf("catalog base URL cannot be empty")
)

// ErrCatalogAPI represents a catalog API failure.
type ErrCatalogAPI struct {
	StatusCode int
	Message    string
	OfferingID string
}

func (e ErrCatalogAPI) Error() string {
	if e.OfferingID != "" {
		return fmt.Sprintf("catalog API error for offering %s: %d %s", e.OfferingID, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("catalog API error: %d %s", e.StatusCode, e.Message)
}

func (e ErrCatalogAPI) Is(target error) bool {
	return target == ErrOfferingNotFound && e.StatusCode == http.StatusNotFound
}

// CatalogConfig configures the catalog client.
type CatalogConfig struct {
	BaseURL    string
	APIKey     string
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// CatalogClient talks to the catalog management API.
type CatalogClient struct {
	config CatalogConfig
}

var _ CatalogService = (*CatalogClient)(nil)

// NewCatalogClient creates a catalog client. BaseURL is required.
func NewCatalogClient(config CatalogConfig) (*CatalogClient, error) {
	if config.BaseURL == "" {
		return nil, ErrCatalogBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultCatalogTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Timeout: config.Timeout,
		}
	}
	return &CatalogClient{config: config}, nil
}

// ListOfferings returns the selectable offerings.
func (c *CatalogClient) ListOfferings(ctx context.Context) ([]protocol.CatalogInfo, error) {
	var offerings []protocol.CatalogInfo
	if err := c.getJSON(ctx, "", &offerings, "offerings"); err != nil {
		return nil, err
	}
	return offerings, nil
}

// OfferingExists reports whether the offering is known to the catalog.
func (c *CatalogClient) OfferingExists(ctx context.Context, offeringID string) (bool, error) {
	var meta struct {
		ID string `json:"id"`
	}
	err := c.getJSON(ctx, offeringID, &meta, "offerings", offeringID)
	if err != nil {
		var apiErr ErrCatalogAPI
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Versions returns the published entries of an offering.
func (c *CatalogClient) Versions(ctx context.Context, offeringID string) ([]reconcile.CatalogEntry, error) {
	var entries []reconcile.CatalogEntry
	if err := c.getJSON(ctx, offeringID, &entries, "offerings", offeringID, "versions"); err != nil {
		return nil, err
	}
	return entries, nil
}

// PublishVersion publishes a version referencing an upstream tag.
func (c *CatalogClient) PublishVersion(ctx context.Context, offeringID, version, tag string) error {
	apiURL, err := url.JoinPath(c.config.BaseURL, "offerings", offeringID, "versions")
	if err != nil {
		return fmt.Errorf("failed to construct API URL: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"version": version,
		"tag":     tag,
	})
	if err != nil {
		return fmt.Errorf("failed to encode publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return ErrCatalogAPI{StatusCode: 0, Message: err.Error(), OfferingID: offeringID}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return ErrCatalogAPI{StatusCode: resp.StatusCode, Message: resp.Status, OfferingID: offeringID}
	}
	return nil
}

// CheckAuth probes the API key against the account endpoint.
func (c *CatalogClient) CheckAuth(ctx context.Context) bool {
	var account struct {
		ID string `json:"id"`
	}
	return c.getJSON(ctx, "", &account, "account") == nil
}

func (c *CatalogClient) getJSON(ctx context.Context, offeringID string, out any, elems ...string) error {
	apiURL, err := url.JoinPath(c.config.BaseURL, elems...)
	if err != nil {
		return fmt.Errorf("failed to construct API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return ErrCatalogAPI{StatusCode: 0, Message: err.Error(), OfferingID: offeringID}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return ErrCatalogAPI{StatusCode: resp.StatusCode, Message: resp.Status, OfferingID: offeringID}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrCatalogAPI{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			OfferingID: offeringID,
		}
	}
	return nil
}

func (c *CatalogClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}
