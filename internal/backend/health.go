package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/mod/semver"
)

// MinServerVersion is the oldest auth server this client is known to work
// with. Older servers use a different token envelope.
const MinServerVersion = "v2.0.0"

// HealthStatus is the backend's health probe response.
type HealthStatus struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Health probes the auth service and reports whether the server version is
// supported. An unparseable version is reported but not treated as fatal.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.do(ctx, http.MethodGet, c.endpoint("/auth/v1/health", nil), nil, nil, &status); err != nil {
		return nil, fmt.Errorf("health probe failed: %w", err)
	}

	v := status.Version
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if semver.IsValid(v) && semver.Compare(v, MinServerVersion) < 0 {
		c.logger.Printf("WARNING: server version %s is below supported minimum %s", status.Version, MinServerVersion)
	}
	return &status, nil
}
