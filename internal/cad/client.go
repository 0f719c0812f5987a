package cad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// API is the dispatch service surface consumed by the sync engine.
// It is implemented by *Client and faked in tests.
type API interface {
	FetchSync(ctx context.Context, scope SyncScope) (*SyncResponse, error)
	BookOn(ctx context.Context, req BookOnRequest) (Ack, error)
	BookOff(ctx context.Context, callsign string) (Ack, error)
	UpdateStatus(ctx context.Context, callsign string, req StatusUpdateRequest) (Ack, error)
	FetchIncidentDetails(ctx context.Context, id string) (*IncidentDetails, error)
	FetchResourceDetails(ctx context.Context, callsign string) (*ResourceDetails, error)
	FetchManifest(ctx context.Context, collections []string, since time.Time) (*ManifestDelta, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// Client talks to the dispatch HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultAPIURL    = "127.0.0.1:8640"
	defaultUserAgent = "cadsync/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 512
)

// NewClient builds a Client for the given base URL or host:port.
func NewClient(apiURL string) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// BaseURL returns a copy of the normalized base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// FetchSync retrieves a sync summary for the given scope.
func (c *Client) FetchSync(ctx context.Context, scope SyncScope) (*SyncResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	switch scope.Kind {
	case ScopePatrolGroup:
		group := strings.TrimSpace(scope.PatrolGroup)
		if group == "" {
			return nil, fmt.Errorf("patrol group required")
		}
		values.Set("patrolGroup", group)
	case ScopeBoundingBox:
		if !scope.Box.Valid() {
			return nil, fmt.Errorf("invalid bounding box")
		}
		values.Set("nw", scope.Box.NorthWest.String())
		values.Set("se", scope.Box.SouthEast.String())
	}
	rel := &url.URL{Path: "/api/sync", RawQuery: values.Encode()}
	var payload SyncResponse
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// BookOn submits a book-on request.
func (c *Client) BookOn(ctx context.Context, req BookOnRequest) (Ack, error) {
	if c == nil {
		return Ack{}, fmt.Errorf("client is nil")
	}
	return c.post(ctx, "/api/bookon", req)
}

// BookOff ends the shift for callsign.
func (c *Client) BookOff(ctx context.Context, callsign string) (Ack, error) {
	if c == nil {
		return Ack{}, fmt.Errorf("client is nil")
	}
	return c.post(ctx, "/api/bookoff", BookOffRequest{Callsign: callsign})
}

// UpdateStatus changes the status of callsign on the server.
func (c *Client) UpdateStatus(ctx context.Context, callsign string, req StatusUpdateRequest) (Ack, error) {
	if c == nil {
		return Ack{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(callsign) == "" {
		return Ack{}, fmt.Errorf("callsign required")
	}
	return c.post(ctx, "/api/resources/"+url.PathEscape(callsign)+"/status", req)
}

// FetchIncidentDetails retrieves the expanded view of an incident.
func (c *Client) FetchIncidentDetails(ctx context.Context, id string) (*IncidentDetails, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("incident id required")
	}
	var payload IncidentDetails
	if err := c.do(ctx, http.MethodGet, "/api/incidents/"+url.PathEscape(id), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchResourceDetails retrieves the expanded view of a resource.
func (c *Client) FetchResourceDetails(ctx context.Context, callsign string) (*ResourceDetails, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(callsign) == "" {
		return nil, fmt.Errorf("callsign required")
	}
	var payload ResourceDetails
	if err := c.do(ctx, http.MethodGet, "/api/resources/"+url.PathEscape(callsign), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchManifest retrieves manifest items changed since the given time. An
// empty collections list fetches every collection; a zero since fetches all.
func (c *Client) FetchManifest(ctx context.Context, collections []string, since time.Time) (*ManifestDelta, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	if len(collections) > 0 {
		values.Set("collections", strings.Join(collections, ","))
	}
	if !since.IsZero() {
		values.Set("since", since.UTC().Format(time.RFC3339))
	}
	rel := &url.URL{Path: "/api/manifest", RawQuery: values.Encode()}
	var payload ManifestDelta
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (Ack, error) {
	var ack Ack
	if err := c.do(ctx, http.MethodPost, path, body, &ack); err != nil {
		return Ack{}, err
	}
	if !ack.Accepted {
		return ack, &APIError{Path: path, StatusCode: http.StatusUnprocessableEntity, Message: ack.Message}
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Path: rel.Path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
