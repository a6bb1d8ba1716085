package pokeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
)

const (
	// DefaultBaseURL is the pokemon endpoint template; the id is appended as a path segment
	DefaultBaseURL = "https://pokeapi.co/api/v2/pokemon"

	// DefaultTimeout bounds every request so a hung server can't stall the range walk
	DefaultTimeout = 10 * time.Second

	defaultUserAgent = "pokemon-data-pipeline/1.0"
)

// Client fetches one pokemon record per request
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	log        *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom endpoint (useful for testing)
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout is kept as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger attaches a logger for successful fetches
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.log = l.Component("Fetcher")
	}
}

// NewClient creates a new PokeAPI client with the given options
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// URL returns the request URL for a pokemon id
func (c *Client) URL(id int) string {
	return c.baseURL + "/" + strconv.Itoa(id)
}

// Fetch issues one GET for the given id and returns the decoded body verbatim.
// Returns:
//   - (record, nil) on a 2xx response with a JSON object body
//   - (nil, *StatusError) on any other status
//   - (nil, *FetchError) on transport failure, timeout or an undecodable body
func (c *Client) Fetch(ctx context.Context, id int) (RawRecord, error) {
	if id < 1 {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("id must be positive")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(id), nil)
	if err != nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{ID: id, StatusCode: resp.StatusCode}
	}

	var record RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, &FetchError{ID: id, Err: fmt.Errorf("failed to decode body: %w", err)}
	}
	if record == nil {
		// a literal `null` body decodes without error
		return nil, &FetchError{ID: id, Err: fmt.Errorf("empty body")}
	}

	c.log.Infof("Fetched data for Pokemon ID %d", id)
	return record, nil
}
