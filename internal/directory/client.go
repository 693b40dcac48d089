// Package directory wraps the external ICD-10 code directory: a public
// text-search endpoint that answers a query with matching codes and
// display names. All transport, HTTP-status, and payload failures are
// treated uniformly as retryable up to the attempt budget.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Match is one (code, name) pair returned by the directory.
type Match struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ClientConfig configures endpoint, timeout, and the retry budget.
type ClientConfig struct {
	// BaseURL is the search endpoint, e.g. the NLM clinical tables API.
	BaseURL string `json:"base_url" yaml:"base_url"`
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// MaxAttempts is the total number of tries per search.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:     "https://clinicaltables.nlm.nih.gov/api/icd10cm/v3/search",
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Client is an HTTP client for the code directory.
type Client struct {
	config ClientConfig
	http   *http.Client
	log    *logrus.Logger
}

// NewClient creates a directory client. Zero-valued config fields fall
// back to the defaults; a nil logger gets a default one.
func NewClient(config ClientConfig, log *logrus.Logger) *Client {
	def := DefaultClientConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = def.BaseDelay
	}
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		log:    log,
	}
}

// Search queries the directory for term, retrying with exponential
// backoff. It returns an error only after the whole attempt budget is
// exhausted; callers are expected to treat that as an empty result.
func (c *Client) Search(ctx context.Context, term string, maxResults int) ([]Match, error) {
	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.config.BaseDelay * time.Duration(1<<(attempt-2))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		matches, err := c.searchOnce(ctx, term, maxResults)
		if err == nil {
			return matches, nil
		}
		lastErr = err
		c.log.WithError(err).WithFields(logrus.Fields{
			"term":    term,
			"attempt": attempt,
		}).Warn("code directory lookup failed")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("code directory lookup exhausted %d attempts: %w",
		c.config.MaxAttempts, lastErr)
}

func (c *Client) searchOnce(ctx context.Context, term string, maxResults int) ([]Match, error) {
	q := url.Values{}
	q.Set("terms", term)
	q.Set("sf", "code,name")
	q.Set("maxList", fmt.Sprintf("%d", maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseSearchPayload(body)
}

// parseSearchPayload decodes the directory's positional JSON array:
// [totalCount, [codes...], extra, [[code, name], ...]].
func parseSearchPayload(body []byte) ([]Match, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed directory payload: %w", err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("malformed directory payload: %d elements", len(raw))
	}

	var displays [][]string
	if err := json.Unmarshal(raw[3], &displays); err != nil {
		return nil, fmt.Errorf("malformed display pairs: %w", err)
	}

	matches := make([]Match, 0, len(displays))
	for _, pair := range displays {
		if len(pair) < 2 {
			continue
		}
		matches = append(matches, Match{Code: pair[0], Name: pair[1]})
	}
	return matches, nil
}
