// Package checker provides health probes for monitored dependencies. Each
// probe produces exactly one boolean outcome per poll cycle: true when the
// dependency looks healthy, false otherwise.
package checker

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/dskow/tripwatch/internal/config"
)

// A Checker probes a dependency once and reports whether it is healthy.
// Implementations must respect ctx for cancellation and deadlines.
type Checker interface {
	Check(ctx context.Context) bool
}

// New builds a Checker for the given probe type and address. The config
// layer validates both, so an error here means a programming mistake.
func New(probe, address string) (Checker, error) {
	switch probe {
	case config.ProbeTCP:
		return &TCPChecker{Address: address}, nil
	case config.ProbeHTTP:
		return &HTTPChecker{URL: address, Client: http.DefaultClient}, nil
	default:
		return nil, fmt.Errorf("unknown probe type %q", probe)
	}
}

// TCPChecker reports healthy when a TCP connection to Address succeeds.
type TCPChecker struct {
	Address string
	dialer  net.Dialer
}

// Check dials the address and immediately closes the connection.
func (c *TCPChecker) Check(ctx context.Context) bool {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// HTTPChecker reports healthy when a GET to URL returns any response with a
// status below 500. 4xx responses count as healthy: the dependency answered,
// it just disliked the request.
type HTTPChecker struct {
	URL    string
	Client *http.Client
}

// Check issues one GET request bounded by ctx.
func (c *HTTPChecker) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return false
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
