// Package backend is the client SDK for the hosted backend service.
//
// The backend exposes three surfaces, all consumed here:
//   - a row API for the tasks, categories, and profiles resources
//     (filtered reads, inserts returning the stored representation,
//     patches and deletes by id)
//   - a session-based auth API (password sign-in, sign-up, federated
//     sign-in, sign-out, session retrieval/refresh, auth-change events)
//   - a realtime push API delivering row change events per resource,
//     scoped by an owning-identity filter
//
// Every request carries the anonymous API key; authenticated requests add
// the session's bearer token. The Client persists its session to disk and
// refreshes expired tokens transparently, so a restarted process resumes
// the previous session without re-authenticating.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/planward/planward/internal/config"
	"github.com/planward/planward/internal/model"
)

// Client talks to the hosted backend. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	anonKey string
	http    *http.Client
	logger  *log.Logger

	sessionPath string // session cache file, empty disables persistence

	mu        sync.RWMutex
	session   *model.Session
	listeners map[int]func(AuthEvent)
	nextID    int
}

// New builds a Client from config. The backend URL must already have been
// validated; a malformed URL is rejected here as well.
func New(cfg *config.Config, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.BackendURL)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[backend] ", log.LstdFlags)
	}
	return &Client{
		baseURL: u,
		anonKey: cfg.AnonKey,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		listeners: make(map[int]func(AuthEvent)),
	}, nil
}

// EnableSessionPersistence caches the session at path across restarts.
func (c *Client) EnableSessionPersistence(path string) {
	c.sessionPath = path
}

// endpoint joins the base URL with a path and query values.
func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do issues a request with the standard headers and decodes a JSON
// response body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, rawURL string, body any, extra http.Header, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if tok := c.accessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}
