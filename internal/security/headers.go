package security

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultCSP          = "default-src 'none'; frame-ancestors 'none'"
	defaultCacheControl = "no-store"
	defaultHSTSMaxAge   = 365 * 24 * 60 * 60
)

// Headers configures the response headers added to every API response.
type Headers struct {
	Enable bool
	// ContentSecurityPolicy and CacheControl fall back to a deny-all policy and no-store;
	// quotes carry supplier prices and must not sit in shared caches.
	ContentSecurityPolicy string
	CacheControl          string

	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	// TrustForwardedProto treats X-Forwarded-Proto: https as TLS, for deployments
	// where a proxy terminates TLS in front of the API.
	TrustForwardedProto bool
}

func (h Headers) static() [][2]string {
	csp := strings.TrimSpace(h.ContentSecurityPolicy)
	if csp == "" {
		csp = defaultCSP
	}
	cache := strings.TrimSpace(h.CacheControl)
	if cache == "" {
		cache = defaultCacheControl
	}
	return [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Content-Security-Policy", csp},
		{"Cache-Control", cache},
	}
}

func (h Headers) hsts() string {
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	value := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		value += "; includeSubDomains"
	}
	return value
}

func (h Headers) secure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return h.TrustForwardedProto && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Middleware sets the configured headers before the handler runs, so handlers
// may still override Cache-Control or Content-Type for downloads.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	static := h.static()
	hsts := h.hsts()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for _, kv := range static {
			headers.Set(kv[0], kv[1])
		}
		if h.EnableHSTS && h.secure(r) {
			headers.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}
