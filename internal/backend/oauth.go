package backend

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Federated sign-in runs the provider flow through the system browser and a
// loopback callback listener. The backend redirects the browser back to
// http://127.0.0.1:<port>/callback with tokens in the URL fragment; a small
// page re-posts them to /complete so the listener can read them.

const callbackPage = `<!doctype html>
<html><body><p>Completing sign-in...</p><script>
var h = window.location.hash.substring(1);
fetch('/complete?' + h, {method: 'POST'}).then(function () {
  document.body.innerHTML = '<p>Signed in. You can close this tab.</p>';
});
</script></body></html>`

// OAuthFlow is an in-progress federated sign-in.
type OAuthFlow struct {
	// AuthorizeURL is the provider URL to open in a browser.
	AuthorizeURL string

	server   *http.Server
	listener net.Listener
	result   chan oauthResult
}

type oauthResult struct {
	accessToken  string
	refreshToken string
	err          error
}

// StartOAuth opens the loopback listener and returns the flow. The caller
// directs the user to AuthorizeURL, then calls Wait.
func (c *Client) StartOAuth(provider string) (*OAuthFlow, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to open callback listener: %w", err)
	}
	redirect := fmt.Sprintf("http://%s/callback", ln.Addr().String())

	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirect)

	flow := &OAuthFlow{
		AuthorizeURL: c.endpoint("/auth/v1/authorize", q),
		listener:     ln,
		result:       make(chan oauthResult, 1),
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}}))
	r.Get("/callback", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, callbackPage)
	})
	r.Post("/complete", func(w http.ResponseWriter, req *http.Request) {
		qs := req.URL.Query()
		res := oauthResult{
			accessToken:  qs.Get("access_token"),
			refreshToken: qs.Get("refresh_token"),
		}
		if res.accessToken == "" {
			res.err = fmt.Errorf("provider returned no access token (%s)", qs.Get("error_description"))
		}
		select {
		case flow.result <- res:
		default:
		}
		w.WriteHeader(http.StatusNoContent)
	})

	flow.server = &http.Server{Handler: r}
	go func() {
		if err := flow.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			select {
			case flow.result <- oauthResult{err: fmt.Errorf("callback server failed: %w", err)}:
			default:
			}
		}
	}()
	return flow, nil
}

// Wait blocks until the provider redirects back or ctx expires, then
// installs the resulting session.
func (c *Client) Wait(ctx context.Context, flow *OAuthFlow) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = flow.server.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("federated sign-in timed out: %w", ctx.Err())
	case res := <-flow.result:
		if res.err != nil {
			return res.err
		}
		id, email, exp, err := decodeClaims(res.accessToken)
		if err != nil {
			return fmt.Errorf("provider token unreadable: %w", err)
		}
		sess := newSessionFromTokens(res.accessToken, res.refreshToken, id, email, exp)
		c.setSession(sess, AuthSignedIn)
		return nil
	}
}
