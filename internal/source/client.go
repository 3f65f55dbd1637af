package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the remote knowledge-base API. It retries transient
// failures (timeouts, 429, 5xx) with capped exponential backoff and
// never retries other client errors.
type Client struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// NewClient builds a Client with the given HTTP timeout and retry
// strategy. Zero values fall back to defaults (30s timeout, 3
// attempts, 500ms base, 4s cap).
func NewClient(httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

type tocEnvelope struct {
	Data []TocNode `json:"data"`
}

type docEnvelope struct {
	Data RawDocument `json:"data"`
}

// FetchTOC returns the ordered table-of-contents tree for the
// configured namespace, with node depths resolved.
func (c *Client) FetchTOC(ctx context.Context, cfg Config) ([]TocNode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("source config: %w", err)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/toc", cfg.BaseURL, cfg.Namespace)
	var env tocEnvelope
	if err := c.getJSON(ctx, cfg, endpoint, &env); err != nil {
		return nil, err
	}
	ResolveDepths(env.Data)
	return env.Data, nil
}

// FetchDocument returns the raw record for one document node,
// addressed by remote id or slug.
func (c *Client) FetchDocument(ctx context.Context, cfg Config, idOrSlug string) (*RawDocument, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("source config: %w", err)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/docs/%s", cfg.BaseURL, cfg.Namespace, url.PathEscape(idOrSlug))
	var env docEnvelope
	if err := c.getJSON(ctx, cfg, endpoint, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) getJSON(ctx context.Context, cfg Config, endpoint string, out any) error {
	maxAttempts := c.retryMaxAttempts
	backoff := c.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if cfg.Token != "" {
			req.Header.Set("X-Auth-Token", cfg.Token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < maxAttempts {
				lastErr = err
				time.Sleep(withJitter(backoff, c.retryMaxDelay))
				backoff *= 2
				continue
			}
			return fmt.Errorf("http request: %w", err)
		}

		retry, err := c.handleResponse(resp, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt >= maxAttempts {
			break
		}
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			time.Sleep(rl.RetryAfter)
		} else {
			time.Sleep(withJitter(backoff, c.retryMaxDelay))
			backoff *= 2
		}
	}
	return lastErr
}

// handleResponse decodes a success body into out, or classifies the
// error response. The bool reports whether the caller may retry.
func (c *Client) handleResponse(resp *http.Response, out any) (bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
		return false, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	remoteErr := &RemoteError{StatusCode: resp.StatusCode, Raw: raw}
	if v, ok := raw["error"].(map[string]any); ok {
		if msg, ok := v["message"].(string); ok {
			remoteErr.Message = msg
		}
		if code, ok := v["code"].(string); ok {
			remoteErr.Code = code
		}
	} else {
		if msg, ok := raw["message"].(string); ok {
			remoteErr.Message = msg
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return false, &AuthError{remoteErr}
	case resp.StatusCode == http.StatusForbidden:
		return false, &ForbiddenError{remoteErr}
	case resp.StatusCode == http.StatusNotFound:
		return false, &NotFoundError{remoteErr}
	case resp.StatusCode == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return true, &RateLimitError{RemoteError: remoteErr, RetryAfter: ra}
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		return true, &ServerError{remoteErr}
	default:
		return false, remoteErr
	}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or
// an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter applies +/- 20% jitter and the configured cap.
func withJitter(d, maxDelay time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if maxDelay > 0 && out > maxDelay {
		out = maxDelay
	}
	return out
}
