package timely

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.timelyapp.com/1.1"

	// DefaultPerPage is the page size requested from the events endpoint.
	DefaultPerPage = 250

	maxRetries = 3
	// upper bound on pages, guards against an API that never returns an empty page
	maxPages = 1000
)

type Client struct {
	session    *Session
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	perPage    int
	backoff    func(attempt int) time.Duration
	logger     *slog.Logger
}

// NewClient creates a Timely API client. requestsPerSecond <= 0 disables pacing.
func NewClient(session *Session, baseURL string, requestsPerSecond float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		session: session,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		perPage: DefaultPerPage,
		backoff: backoff,
		logger:  logger,
	}
}

// SetPerPage overrides the events page size.
func (c *Client) SetPerPage(n int) {
	if n > 0 {
		c.perPage = n
	}
}

func (c *Client) doRequest(ctx context.Context, op, path string) ([]byte, error) {
	reauthenticated := false
	requestStart := time.Now()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamFetchError{Op: op, Err: err}
		}

		token, err := c.session.AccessToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		c.logger.Debug("timely API request", "op", op, "path", path, "attempt", attempt+1)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt >= maxRetries || ctx.Err() != nil {
				c.logger.Error("API request transport error", "op", op, "path", path, "error", err, "elapsed", time.Since(requestStart))
				return nil, &UpstreamFetchError{Op: op, Err: err}
			}
			c.logger.Debug("API request transport error, retrying", "op", op, "attempt", attempt+1, "error", err)
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, &UpstreamFetchError{Op: op, Err: err}
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &UpstreamFetchError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && !reauthenticated:
			c.logger.Debug("access token rejected, re-authenticating", "op", op)
			c.session.Invalidate()
			reauthenticated = true
			continue
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, &AuthenticationError{Status: resp.StatusCode, Reason: "access token rejected"}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if attempt >= maxRetries {
				c.logger.Error("API request failed after retries", "op", op, "status", resp.StatusCode, "attempts", attempt+1, "elapsed", time.Since(requestStart))
				return nil, &UpstreamFetchError{Op: op, Status: resp.StatusCode, Body: truncate(string(body), 200)}
			}
			c.logger.Debug("API request retryable error", "op", op, "status", resp.StatusCode, "attempt", attempt+1)
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, &UpstreamFetchError{Op: op, Status: resp.StatusCode, Err: err}
			}
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			c.logger.Error("API request failed", "op", op, "status", resp.StatusCode, "response", truncate(string(body), 200))
			return nil, &UpstreamFetchError{Op: op, Status: resp.StatusCode, Body: truncate(string(body), 200)}
		}

		c.logger.Debug("timely API response", "op", op, "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(requestStart))
		return body, nil
	}
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.backoff(attempt)):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// EventsPage fetches one page of events for an account, since and upto
// being inclusive YYYY-MM-DD dates.
func (c *Client) EventsPage(ctx context.Context, accountID, since, upto string, page int) ([]Event, error) {
	if accountID == "" {
		return nil, errors.New("account ID is empty: set account_id in config or TIMELY_ACCOUNT_ID env var")
	}
	if page < 1 {
		page = 1
	}

	q := url.Values{
		"since":    {since},
		"upto":     {upto},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(c.perPage)},
	}
	path := "/" + url.PathEscape(accountID) + "/events?" + q.Encode()

	data, err := c.doRequest(ctx, "list events", path)
	if err != nil {
		return nil, err
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, &UpstreamFetchError{Op: "list events", Status: http.StatusOK, Err: fmt.Errorf("parsing events response: %w", err)}
	}
	return events, nil
}

// FetchEvents fetches every event of the range, requesting pages until an
// empty one comes back.
func (c *Client) FetchEvents(ctx context.Context, accountID, since, upto string) ([]Event, error) {
	var all []Event
	for page := 1; page <= maxPages; page++ {
		events, err := c.EventsPage(ctx, accountID, since, upto, page)
		if err != nil {
			return nil, fmt.Errorf("fetching events page %d: %w", page, err)
		}
		if len(events) == 0 {
			c.logger.Debug("fetched timely events", "account", accountID, "since", since, "upto", upto, "events", len(all), "pages", page-1)
			return all, nil
		}
		all = append(all, events...)
	}
	return nil, &UpstreamFetchError{Op: "list events", Err: fmt.Errorf("no empty page after %d pages", maxPages)}
}
