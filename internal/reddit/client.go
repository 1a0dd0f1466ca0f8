// Package reddit implements a minimal Reddit API client and the live
// content streams built on top of it.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"reddit_watcher/internal/model"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"
)

// ErrUnauthorized is returned when Reddit rejects the configured
// credentials. Callers treat it as fatal rather than retryable.
var ErrUnauthorized = errors.New("reddit: unauthorized")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Item is one post or comment from a listing.
type Item struct {
	ID        string
	FullName  string
	Subreddit string
	Title     string
	Body      string
	Permalink string
	Over18    bool
}

// URL returns the absolute reddit.com link for the item.
func (it Item) URL() string {
	return "https://www.reddit.com" + it.Permalink
}

// Client talks to the Reddit API using the application-only OAuth2 flow.
type Client struct {
	httpClient   HTTPClient
	clientID     string
	clientSecret string
	userAgent    string

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Client with the given application credentials.
func NewClient(clientID, clientSecret, userAgent string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
	}
}

// NewClientWithHTTP creates a Client with a custom HTTP client (useful for
// testing).
func NewClientWithHTTP(clientID, clientSecret, userAgent string, hc HTTPClient) *Client {
	c := NewClient(clientID, clientSecret, userAgent)
	c.httpClient = hc
	return c
}

// Authenticate obtains an access token via the client-credentials grant.
// It returns ErrUnauthorized when the credentials are rejected.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: token endpoint returned %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		// Reddit reports bad app credentials with a 200 and an error field.
		return fmt.Errorf("%w: %s", ErrUnauthorized, body.Error)
	}

	c.mu.Lock()
	c.token = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	c.mu.Unlock()
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiry := c.token, c.tokenExpiry
	c.mu.Unlock()

	if token != "" && time.Until(expiry) > time.Minute {
		return token, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// Listing fetches the newest posts or comments for the subreddit target.
// Items are returned in the API's order, newest first.
func (c *Client) Listing(ctx context.Context, kind model.ContentKind, target string, limit int) ([]Item, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	path := "new"
	if kind == model.KindComment {
		path = "comments"
	}
	u := fmt.Sprintf("%s/r/%s/%s?limit=%d&raw_json=1", apiBase, url.PathEscape(target), path, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Token may simply have expired; refresh on the next call.
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, fmt.Errorf("listing returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("listing returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return parseListing(raw)
}

func parseListing(raw []byte) ([]Item, error) {
	var listing struct {
		Data struct {
			Children []struct {
				Data struct {
					ID        string `json:"id"`
					Name      string `json:"name"`
					Subreddit string `json:"subreddit"`
					Title     string `json:"title"`
					Selftext  string `json:"selftext"`
					Body      string `json:"body"`
					Permalink string `json:"permalink"`
					Over18    bool   `json:"over_18"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	items := make([]Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		d := child.Data
		body := d.Body
		if body == "" {
			body = d.Selftext
		}
		items = append(items, Item{
			ID:        d.ID,
			FullName:  d.Name,
			Subreddit: d.Subreddit,
			Title:     d.Title,
			Body:      body,
			Permalink: d.Permalink,
			Over18:    d.Over18,
		})
	}
	return items, nil
}
