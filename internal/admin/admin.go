// Package admin provides read-only admin API endpoints for runtime
// inspection of watchdog state. Endpoints are protected by IP allowlist
// and, when configured, JWT Bearer auth.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/dskow/tripwatch/internal/apierror"
	"github.com/dskow/tripwatch/internal/auth"
	"github.com/dskow/tripwatch/internal/config"
	"github.com/dskow/tripwatch/internal/metrics"
	"github.com/dskow/tripwatch/internal/monitor"
)

// StatusProvider abstracts monitor state access for testability.
type StatusProvider interface {
	Statuses() []monitor.Status
}

// ConfigProvider abstracts config access for testability.
type ConfigProvider interface {
	Current() *config.Config
}

// Handler provides admin API endpoints.
type Handler struct {
	reloader    ConfigProvider
	status      StatusProvider
	verifier    *auth.Verifier // nil when admin auth is disabled
	allowedNets []*net.IPNet
	logger      *slog.Logger
}

// New creates an admin Handler. The allowlist CIDRs must be pre-validated
// (config validation ensures this). verifier may be nil to disable auth.
func New(
	reloader ConfigProvider,
	status StatusProvider,
	verifier *auth.Verifier,
	allowlist []string,
	logger *slog.Logger,
) *Handler {
	nets := make([]*net.IPNet, 0, len(allowlist))
	for _, cidr := range allowlist {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue // already validated by config
		}
		nets = append(nets, ipNet)
	}
	return &Handler{
		reloader:    reloader,
		status:      status,
		verifier:    verifier,
		allowedNets: nets,
		logger:      logger,
	}
}

// RegisterRoutes adds admin routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/targets", h.guard(h.targetsHandler))
	mux.HandleFunc("/admin/config", h.guard(h.configHandler))
}

// guard wraps a handler with method, IP allowlist, and auth checks.
func (h *Handler) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			apierror.WriteJSON(w, http.StatusMethodNotAllowed, apierror.MethodNotAllowed, "method not allowed")
			return
		}

		ip := extractIP(r.RemoteAddr)
		if !h.isAllowed(ip) {
			h.logger.Warn("admin access denied", "client_ip", ip, "path", r.URL.Path)
			apierror.WriteJSON(w, http.StatusForbidden, apierror.Forbidden, "access denied")
			return
		}

		if h.verifier != nil {
			if _, err := h.verifier.Verify(r); err != nil {
				h.logger.Warn("admin auth failure", "error", err, "path", r.URL.Path)
				var scopeErr *auth.ScopeError
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					metrics.AuthFailures.WithLabelValues("missing_token").Inc()
					apierror.WriteJSON(w, http.StatusUnauthorized, apierror.AuthMissingToken, "missing or malformed Authorization header")
				case errors.As(err, &scopeErr):
					metrics.AuthFailures.WithLabelValues("insufficient_scope").Inc()
					apierror.WriteJSON(w, http.StatusForbidden, apierror.AuthInsufficientScope, err.Error())
				default:
					metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
					apierror.WriteJSON(w, http.StatusUnauthorized, apierror.AuthInvalidToken, err.Error())
				}
				return
			}
		}

		next(w, r)
	}
}

func (h *Handler) isAllowed(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range h.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func (h *Handler) targetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"targets": h.status.Statuses(),
	})
}

func (h *Handler) configHandler(w http.ResponseWriter, r *http.Request) {
	cfg := h.reloader.Current()

	// Shallow copy and redact sensitive fields.
	redacted := *cfg
	if redacted.Admin.Auth.JWTSecret != "" {
		redacted.Admin.Auth.JWTSecret = "***"
	}

	writeJSON(w, http.StatusOK, redacted)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
