package gallery

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
	"golang.org/x/time/rate"
)

// Client talks to the gallery HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	limiter   *rate.Limiter
	userAgent string
	clientID  string
}

const (
	defaultAPIURL    = "127.0.0.1:8080"
	defaultUserAgent = "storyboard/0.1"
	requestTimeout   = 10 * time.Second

	clientIDHeader = "X-Client-Id"
)

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit paces outgoing requests. Values <= 0 disable pacing.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient replaces the client used for request/response calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a Client for the given base URL or host:port.
func NewClient(apiURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		// The update stream is long-lived; only the context ends it.
		stream:    &http.Client{},
		limiter:   rate.NewLimiter(rate.Inf, 1),
		userAgent: defaultUserAgent,
		clientID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClientID identifies this process to the server.
func (c *Client) ClientID() string {
	return c.clientID
}

// FetchImages retrieves the ordered image list for a scope.
func (c *Client) FetchImages(ctx context.Context, path string) ([]ImageRecord, error) {
	var payload []ImageRecord
	if err := c.doJSON(ctx, http.MethodGet, scoped("/api/images", "", path), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Reorder submits a neighbor-relative move.
func (c *Client) Reorder(ctx context.Context, path string, intent ReorderIntent) error {
	if strings.TrimSpace(intent.MovedID) == "" {
		return fmt.Errorf("moved id required")
	}
	rel := scoped(imagePath(intent.MovedID, "/reorder"), imageRawPath(intent.MovedID, "/reorder"), path)
	return c.doJSON(ctx, http.MethodPost, rel, newReorderRequest(intent), nil)
}

// DeleteImage removes an image from a scope.
func (c *Client) DeleteImage(ctx context.Context, path, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("image id required")
	}
	return c.doJSON(ctx, http.MethodDelete, scoped(imagePath(id, ""), imageRawPath(id, ""), path), nil, nil)
}

// FetchDialog retrieves the encoded dialog lines for one image.
func (c *Client) FetchDialog(ctx context.Context, path, id string) ([]string, error) {
	var payload DialogPayload
	rel := scoped(imagePath(id, "/dialog"), imageRawPath(id, "/dialog"), path)
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Dialog, nil
}

// SaveDialog replaces the encoded dialog lines for one image.
func (c *Client) SaveDialog(ctx context.Context, path, id string, lines []string) error {
	if lines == nil {
		lines = []string{}
	}
	rel := scoped(imagePath(id, "/dialog"), imageRawPath(id, "/dialog"), path)
	return c.doJSON(ctx, http.MethodPost, rel, DialogPayload{Dialog: lines}, nil)
}

// FetchDialogs retrieves every dialog in a scope keyed by image id.
func (c *Client) FetchDialogs(ctx context.Context, path string) (map[string][]string, error) {
	var payload DialogsPayload
	if err := c.doJSON(ctx, http.MethodGet, scoped("/api/dialogs", "", path), nil, &payload); err != nil {
		return nil, err
	}
	if payload.Dialogs == nil {
		payload.Dialogs = map[string][]string{}
	}
	return payload.Dialogs, nil
}

// FetchDescription retrieves the raw text description embedded in an image.
func (c *Client) FetchDescription(ctx context.Context, path, id string) (string, error) {
	var payload descriptionPayload
	rel := scoped(imagePath(id, "/description"), imageRawPath(id, "/description"), path)
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return "", err
	}
	return payload.Description, nil
}

// FetchSpeakers retrieves the speaker registry.
func (c *Client) FetchSpeakers(ctx context.Context) (SpeakerMeta, error) {
	var payload SpeakerMeta
	if err := c.doJSON(ctx, http.MethodGet, &url.URL{Path: "/api/speakers"}, nil, &payload); err != nil {
		return SpeakerMeta{}, err
	}
	return payload, nil
}

// SaveSpeakers replaces the speaker registry.
func (c *Client) SaveSpeakers(ctx context.Context, meta SpeakerMeta) error {
	return c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/speakers"}, meta, nil)
}

// FetchDefaultPath returns the scope the server suggests on first launch.
func (c *Client) FetchDefaultPath(ctx context.Context) (string, error) {
	var payload pathPayload
	if err := c.doJSON(ctx, http.MethodGet, &url.URL{Path: "/api/path"}, nil, &payload); err != nil {
		return "", err
	}
	return payload.Path, nil
}

// FetchDirs lists subdirectories of a scope.
func (c *Client) FetchDirs(ctx context.Context, path string) ([]DirEntry, error) {
	var payload []DirEntry
	if err := c.doJSON(ctx, http.MethodGet, scoped("/api/dirs", "", path), nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// OpenUpdates opens the server-sent event stream. The caller owns the
// returned body and must close it.
func (c *Client) OpenUpdates(ctx context.Context) (io.ReadCloser, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: "/api/updates"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.setHeaders(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open update stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, &StatusError{Method: http.MethodGet, Path: "/api/updates", Code: resp.StatusCode}
	}
	return resp.Body, nil
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.Code)
}

func (c *Client) doJSON(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: rel.Path, Code: resp.StatusCode}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.clientID != "" {
		req.Header.Set(clientIDHeader, c.clientID)
	}
}

// scoped builds a relative URL carrying the optional path query parameter.
// rawPath, when set, holds the percent-encoded form of path segments.
func scoped(path, rawPath, scope string) *url.URL {
	rel := &url.URL{Path: path, RawPath: rawPath}
	if scope != "" {
		values := url.Values{}
		values.Set("path", scope)
		rel.RawQuery = values.Encode()
	}
	return rel
}

func imagePath(id, suffix string) string {
	return "/api/images/" + id + suffix
}

func imageRawPath(id, suffix string) string {
	return "/api/images/" + url.PathEscape(id) + suffix
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
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
