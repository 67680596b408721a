package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/cryptoguard/cryptoguard"
)

const (
	defaultTimeout   = 3 * time.Second
	defaultUserAgent = "cryptoguard-client/1.0"
)

// StatusError is returned when a node answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d (%s)", e.Code, e.Message)
}

type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	baseURL   string
}

// New returns a client for the node at baseURL. A bare host is reached over https.
func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}

	slog.Debug("initialize client", slog.String("module", "client"), slog.String("base", baseURL))
	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: defaultUserAgent,
		baseURL:   baseURL,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

// HttpRequest sends body as json when non-nil and decodes the reply into response.
func (c *Client) HttpRequest(ctx context.Context, method, path string, body any, response any) error {

	if c.baseURL == "" {
		return fmt.Errorf("base url cannot be empty")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.baseURL + path
	slog.DebugContext(ctx, "request", slog.String("module", "client"), slog.String("method", method), slog.String("url", target))

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return &StatusError{Code: resp.StatusCode, Message: failure.Error}
	}

	if response == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

func (c *Client) GetWellKnown(ctx context.Context) (cryptoguard.WellKnown, error) {

	cacheKey := "wellknown:" + c.baseURL
	x, found := c.cache.Get(cacheKey)
	if found {
		return x.(cryptoguard.WellKnown), nil
	}

	var wk cryptoguard.WellKnown
	err := c.HttpRequest(ctx, http.MethodGet, "/.well-known/cryptoguard", nil, &wk)
	if err != nil {
		return cryptoguard.WellKnown{}, fmt.Errorf("failed to get well-known: %w", err)
	}

	c.cache.Set(cacheKey, wk, cache.DefaultExpiration)
	return wk, nil
}

// endpoint expands the named well-known template. Placeholders are {name}.
func (c *Client) endpoint(ctx context.Context, name string, params map[string]string) (string, error) {
	wk, err := c.GetWellKnown(ctx)
	if err != nil {
		return "", err
	}

	ep, ok := wk.Endpoints[name]
	if !ok {
		return "", fmt.Errorf("endpoint %s not found", name)
	}

	path := ep.Template
	for key, value := range params {
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(value))
	}
	return path, nil
}

func (c *Client) Commit(ctx context.Context, sd cryptoguard.SignedDocument) (cryptoguard.Attestation, error) {
	path, err := c.endpoint(ctx, cryptoguard.EndpointCommit, nil)
	if err != nil {
		return cryptoguard.Attestation{}, err
	}

	var attestation cryptoguard.Attestation
	err = c.HttpRequest(ctx, http.MethodPost, path, sd, &attestation)
	if err != nil {
		return cryptoguard.Attestation{}, err
	}
	return attestation, nil
}

func (c *Client) GetAttestation(ctx context.Context, id string) (cryptoguard.Attestation, error) {
	path, err := c.endpoint(ctx, cryptoguard.EndpointAttestation, map[string]string{"id": id})
	if err != nil {
		return cryptoguard.Attestation{}, err
	}

	var attestation cryptoguard.Attestation
	err = c.HttpRequest(ctx, http.MethodGet, path, nil, &attestation)
	if err != nil {
		return cryptoguard.Attestation{}, err
	}
	return attestation, nil
}

// GetSignedDocument fetches an attestation as it was committed, proof included.
func (c *Client) GetSignedDocument(ctx context.Context, id string) (cryptoguard.SignedDocument, error) {
	path, err := c.endpoint(ctx, cryptoguard.EndpointAttestation, map[string]string{"id": id})
	if err != nil {
		return cryptoguard.SignedDocument{}, err
	}

	var sd cryptoguard.SignedDocument
	err = c.HttpRequest(ctx, http.MethodGet, path+"?signed=true", nil, &sd)
	if err != nil {
		return cryptoguard.SignedDocument{}, err
	}
	return sd, nil
}

func (c *Client) QueryAttestations(ctx context.Context, schema, indexingValue string) ([]cryptoguard.Attestation, error) {
	path, err := c.endpoint(ctx, cryptoguard.EndpointAttestations, nil)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("schema", schema)
	query.Set("indexingValue", indexingValue)

	var attestations []cryptoguard.Attestation
	err = c.HttpRequest(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &attestations)
	if err != nil {
		return nil, err
	}
	return attestations, nil
}

func (c *Client) RecentAttestations(ctx context.Context, schema string, limit int) ([]cryptoguard.Attestation, error) {
	path, err := c.endpoint(ctx, cryptoguard.EndpointAttestations, nil)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("schema", schema)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var attestations []cryptoguard.Attestation
	err = c.HttpRequest(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &attestations)
	if err != nil {
		return nil, err
	}
	return attestations, nil
}

// GetStatus fetches the tab status projection. Results are never cached.
func (c *Client) GetStatus(ctx context.Context, pageURL string) (cryptoguard.TabStatus, error) {
	path, err := c.endpoint(ctx, cryptoguard.EndpointStatus, nil)
	if err != nil {
		return cryptoguard.TabStatus{}, err
	}

	query := url.Values{}
	query.Set("url", pageURL)

	var status cryptoguard.TabStatus
	err = c.HttpRequest(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &status)
	if err != nil {
		return cryptoguard.TabStatus{}, err
	}
	return status, nil
}
