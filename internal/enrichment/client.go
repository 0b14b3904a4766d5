package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"romimport/internal/logging"
	"romimport/internal/textutil"
)

// minTitleSimilarity is the score a search hit needs before it is trusted.
const minTitleSimilarity = 0.6

// game is the wire shape of one metadata service record.
type game struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Developer   string   `json:"developer"`
	Publisher   string   `json:"publisher"`
	ReleaseDate string   `json:"release_date"`
	Genres      []string `json:"genres"`
	Region      string   `json:"region"`
	URL         string   `json:"url"`
	Artwork     struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	} `json:"artwork"`
}

type searchResponse struct {
	Results []game `json:"results"`
}

func (g game) result() *Result {
	return &Result{
		Title:        strings.TrimSpace(g.Title),
		Description:  g.Description,
		Developer:    g.Developer,
		Publisher:    g.Publisher,
		ReleaseDate:  g.ReleaseDate,
		Genres:       g.Genres,
		Region:       g.Region,
		FrontArtURL:  g.Artwork.Front,
		BackArtURL:   g.Artwork.Back,
		ReferenceURL: g.URL,
		Source:       "http",
	}
}

// StatusError reports a non-success HTTP answer.
type StatusError struct {
	Code    int
	Latency time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("metadata service returned %d (latency=%v)", e.Code, e.Latency)
}

// HTTPClient queries the JSON metadata service.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	attempts   uint
	delay      time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Provider = (*HTTPClient)(nil)

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(retries int) ClientOption {
	return func(c *HTTPClient) {
		if retries >= 0 {
			c.attempts = uint(retries) + 1
		}
	}
}

// WithRetryDelay sets the first backoff delay.
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if delay > 0 {
			c.delay = delay
		}
	}
}

// WithClientLogger attaches a logger for retry diagnostics.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPClient creates a client for baseURL. The API key is optional.
func NewHTTPClient(baseURL, apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("metadata base url required")
	}
	client := &HTTPClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		attempts:   4,
		delay:      200 * time.Millisecond,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// LookupDigest fetches the record for an MD5. A 404 means no match.
func (c *HTTPClient) LookupDigest(ctx context.Context, md5 string) (*Result, error) {
	md5 = strings.TrimSpace(md5)
	if md5 == "" {
		return nil, nil
	}
	var payload game
	found, err := c.get(ctx, "/games/by-md5/"+url.PathEscape(strings.ToLower(md5)), nil, &payload)
	if err != nil || !found {
		return nil, err
	}
	if payload.Title == "" {
		return nil, nil
	}
	return payload.result(), nil
}

// LookupTitle searches by system and title and returns the closest hit, if
// it is close enough.
func (c *HTTPClient) LookupTitle(ctx context.Context, system, title string) (*Result, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("system", system)
	params.Set("title", title)
	var payload searchResponse
	found, err := c.get(ctx, "/games/search", params, &payload)
	if err != nil || !found {
		return nil, err
	}
	var best *game
	bestScore := 0.0
	for i := range payload.Results {
		score := textutil.TitleSimilarity(title, payload.Results[i].Title)
		if score > bestScore {
			best, bestScore = &payload.Results[i], score
		}
	}
	if best == nil || bestScore < minTitleSimilarity {
		return nil, nil
	}
	return best.result(), nil
}

// get performs a GET with retries and decodes a 200 answer into dst. It
// reports false for 404.
func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst any) (bool, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return false, fmt.Errorf("parse metadata url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	endpoint.RawQuery = params.Encode()

	found := false
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
			}
			req.Header.Set("Accept", "application/json")

			requestStart := time.Now()
			resp, err := c.httpClient.Do(req)
			latency := time.Since(requestStart)
			if err != nil {
				return fmt.Errorf("execute request (latency=%v): %w", latency, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				found = false
				return nil
			case resp.StatusCode != http.StatusOK:
				return &StatusError{Code: resp.StatusCode, Latency: latency}
			}
			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode metadata response: %w", err))
			}
			found = true
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			c.logger.DebugContext(ctx, "metadata request failed, retrying",
				logging.Int("attempt", int(n)+1),
				logging.String("path", path),
				logging.Error(err),
			)
		}),
		retry.Context(ctx),
	)
	return found, err
}

// isTransient reports whether err is worth another attempt: server errors,
// rate limiting and network timeouts.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= 500 || status.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
