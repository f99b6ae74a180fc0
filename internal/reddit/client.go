// Package reddit implements remote.Wiki over the Reddit OAuth API for script
// applications.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/klauern/amsync/internal/logging"
)

// Default endpoints and limits.
const (
	DefaultBaseURL      = "https://oauth.reddit.com"
	DefaultTokenURL     = "https://www.reddit.com/api/v1/access_token"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetryTime = 2 * time.Minute

	// ConfigPage is the wiki page holding AutoModerator rules.
	ConfigPage = "config/automoderator"

	maxBodySize  = 8 << 20
	listPageSize = 100
)

// Config holds everything needed to talk to Reddit.
type Config struct {
	BaseURL   string
	TokenURL  string
	UserAgent string

	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxRetryTime      time.Duration
}

// APIError is a non-success HTTP response from Reddit.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AuthError reports that no access token could be obtained. It is never
// retried.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "reddit: authentication failed: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Client is a Reddit API client. It is safe for sequential use by one
// amsync invocation.
type Client struct {
	baseURL       string
	http          *http.Client
	limiter       *rate.Limiter
	maxRetryTime  time.Duration
	retryInterval time.Duration
}

// New returns a client authenticating with the password grant. No request
// is made until the first API call.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("reddit: a user agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = DefaultMaxRetryTime
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	base := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{agent: cfg.UserAgent, next: http.DefaultTransport},
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	oauth := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	src := oauth2.ReuseTokenSource(nil, &passwordSource{
		ctx:      ctx,
		conf:     oauth,
		username: cfg.Username,
		password: cfg.Password,
	})

	httpClient := oauth2.NewClient(ctx, src)
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          httpClient,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		maxRetryTime:  cfg.MaxRetryTime,
		retryInterval: 500 * time.Millisecond,
	}, nil
}

// FetchConfig returns the raw AutoModerator config of sub.
func (c *Client) FetchConfig(ctx context.Context, sub string) (string, error) {
	var page struct {
		Data struct {
			ContentMD string `json:"content_md"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/r/%s/wiki/%s", url.PathEscape(sub), ConfigPage)
	if err := c.do(ctx, http.MethodGet, path, url.Values{"raw_json": {"1"}}, nil, &page); err != nil {
		return "", err
	}
	return page.Data.ContentMD, nil
}

// WriteConfig replaces the AutoModerator config of sub.
func (c *Client) WriteConfig(ctx context.Context, sub, text, reason string) error {
	form := url.Values{
		"page":    {ConfigPage},
		"content": {text},
		"reason":  {reason},
	}
	path := fmt.Sprintf("/r/%s/api/wiki/edit", url.PathEscape(sub))
	return c.do(ctx, http.MethodPost, path, nil, form, nil)
}

// ListModerated returns the display names of every subreddit the account
// moderates, following pagination to the end.
func (c *Client) ListModerated(ctx context.Context) ([]string, error) {
	var (
		subs  []string
		after string
	)
	for {
		var listing struct {
			Data struct {
				After    string `json:"after"`
				Children []struct {
					Data struct {
						DisplayName string `json:"display_name"`
					} `json:"data"`
				} `json:"children"`
			} `json:"data"`
		}
		query := url.Values{"limit": {fmt.Sprint(listPageSize)}}
		if after != "" {
			query.Set("after", after)
		}
		if err := c.do(ctx, http.MethodGet, "/subreddits/mine/moderator", query, nil, &listing); err != nil {
			return nil, err
		}
		for _, child := range listing.Data.Children {
			subs = append(subs, child.Data.DisplayName)
		}
		if listing.Data.After == "" || len(listing.Data.Children) == 0 {
			break
		}
		after = listing.Data.After
	}

	logging.Debug("listed moderated subreddits", logging.Count(len(subs)))
	return subs, nil
}

// do sends one API request, waiting on the rate limiter before every
// attempt and retrying transient failures with exponential backoff.
//
// Only GET requests are retried after a transport error or a 5xx reply. A
// wiki edit may have been applied even though its reply was lost, so other
// methods are retried only when the request never reached Reddit or was
// rate limited.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	idempotent := method == http.MethodGet

	attempt := 0
	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			var authErr *AuthError
			if ctx.Err() != nil || errors.As(err, &authErr) {
				return backoff.Permanent(err)
			}
			if !idempotent && !isDialError(err) {
				return backoff.Permanent(err)
			}
			logging.Debug("request failed, retrying", logging.Path(path), logging.Err(err))
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Body:       strings.TrimSpace(string(data)),
			}
			if apiErr.Temporary() && (idempotent || resp.StatusCode == http.StatusTooManyRequests) {
				logging.Debug("transient API error, retrying",
					logging.Path(path),
					logging.Status(resp.StatusCode),
				)
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = c.maxRetryTime

	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	logging.Debug("api request",
		logging.Operation(method),
		logging.Path(path),
		logging.Count(attempt),
		logging.Err(err),
	)
	return err
}

// isDialError reports whether err happened before a connection was made.
func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// passwordSource fetches a new token with the password grant whenever the
// cached one has expired.
type passwordSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordSource) Token() (*oauth2.Token, error) {
	logging.Debug("requesting access token", logging.Path(s.conf.Endpoint.TokenURL))
	tok, err := s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	return tok, nil
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(req)
}
