package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/planward/planward/internal/model"
)

// AuthEventType identifies a change in the authentication state.
type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "signed_in"
	AuthSignedOut      AuthEventType = "signed_out"
	AuthTokenRefreshed AuthEventType = "token_refreshed"
)

// AuthEvent is delivered to OnAuthChange listeners whenever the session
// changes, whether from a local call or a background refresh.
type AuthEvent struct {
	Type    AuthEventType
	Session *model.Session // nil on sign-out
}

// tokenResponse is the auth API's grant response envelope.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (r *tokenResponse) session() *model.Session {
	s := &model.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         model.Identity{ID: r.User.ID, Email: r.User.Email},
	}
	if r.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	// Some grant responses omit the user object; fall back to the token
	// claims so the identity is always populated.
	if s.User.ID == "" {
		if id, email, exp, err := decodeClaims(r.AccessToken); err == nil {
			s.User = model.Identity{ID: id, Email: email}
			if s.ExpiresAt.IsZero() {
				s.ExpiresAt = exp
			}
		}
	}
	return s
}

// decodeClaims extracts identity and expiry from the access token without
// verifying the signature. Verification is the backend's job; the client
// only needs the subject and email for display and scoping.
func decodeClaims(token string) (id, email string, exp time.Time, err error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err = parser.ParseUnverified(token, claims); err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to decode token: %w", err)
	}
	if sub, e := claims.GetSubject(); e == nil {
		id = sub
	}
	if v, ok := claims["email"].(string); ok {
		email = v
	}
	if t, e := claims.GetExpirationTime(); e == nil && t != nil {
		exp = t.Time
	}
	return id, email, exp, nil
}

func newSessionFromTokens(access, refresh, id, email string, exp time.Time) *model.Session {
	return &model.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         model.Identity{ID: id, Email: email},
	}
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	q := url.Values{}
	q.Set("grant_type", "password")

	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/token", q), body, nil, &resp); err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}
	sess := resp.session()
	c.setSession(sess, AuthSignedIn)
	return sess, nil
}

// SignUp registers a new email/password identity. Depending on backend
// settings the response may or may not include a usable session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/signup", nil), body, nil, &resp); err != nil {
		return nil, fmt.Errorf("sign-up failed: %w", err)
	}
	if resp.AccessToken == "" {
		// Email confirmation pending; no session yet.
		return nil, nil
	}
	sess := resp.session()
	c.setSession(sess, AuthSignedIn)
	return sess, nil
}

// SignOut revokes the session on the backend and clears local state.
// The local session is cleared even if the revoke call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/logout", nil), nil, nil, nil)
	c.setSession(nil, AuthSignedOut)
	if err != nil {
		return fmt.Errorf("sign-out failed: %w", err)
	}
	return nil
}

// CurrentSession returns the active session, restoring it from the session
// cache on first use and refreshing it if expired. Returns nil with no
// error when there is no session.
func (c *Client) CurrentSession(ctx context.Context) (*model.Session, error) {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()

	if sess == nil {
		sess = c.loadCachedSession()
		if sess == nil {
			return nil, nil
		}
		c.mu.Lock()
		c.session = sess
		c.mu.Unlock()
	}

	if sess.Expired() {
		refreshed, err := c.RefreshSession(ctx)
		if err != nil {
			c.setSession(nil, AuthSignedOut)
			return nil, fmt.Errorf("session expired and refresh failed: %w", err)
		}
		return refreshed, nil
	}
	return sess, nil
}

// RefreshSession exchanges the refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*model.Session, error) {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess == nil || sess.RefreshToken == "" {
		return nil, fmt.Errorf("no session to refresh")
	}

	q := url.Values{}
	q.Set("grant_type", "refresh_token")

	var resp tokenResponse
	body := map[string]string{"refresh_token": sess.RefreshToken}
	if err := c.do(ctx, http.MethodPost, c.endpoint("/auth/v1/token", q), body, nil, &resp); err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	refreshed := resp.session()
	c.setSession(refreshed, AuthTokenRefreshed)
	return refreshed, nil
}

// OnAuthChange registers a listener for session changes. The returned
// function removes the listener.
func (c *Client) OnAuthChange(fn func(AuthEvent)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// setSession installs the session, persists it, and notifies listeners.
func (c *Client) setSession(sess *model.Session, event AuthEventType) {
	c.mu.Lock()
	c.session = sess
	fns := make([]func(AuthEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	c.persistSession(sess)
	for _, fn := range fns {
		fn(AuthEvent{Type: event, Session: sess})
	}
}

func (c *Client) persistSession(sess *model.Session) {
	if c.sessionPath == "" {
		return
	}
	if sess == nil {
		if err := os.Remove(c.sessionPath); err != nil && !os.IsNotExist(err) {
			c.logger.Printf("WARNING: failed to remove session cache: %v", err)
		}
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		c.logger.Printf("WARNING: failed to encode session: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0o700); err != nil {
		c.logger.Printf("WARNING: failed to create session cache dir: %v", err)
		return
	}
	if err := os.WriteFile(c.sessionPath, data, 0o600); err != nil {
		c.logger.Printf("WARNING: failed to write session cache: %v", err)
	}
}

func (c *Client) loadCachedSession() *model.Session {
	if c.sessionPath == "" {
		return nil
	}
	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		return nil
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		c.logger.Printf("WARNING: discarding corrupt session cache: %v", err)
		return nil
	}
	if sess.AccessToken == "" {
		return nil
	}
	return &sess
}
