// File: internal/middleware/origin.go
package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy is the allow-list of browser origins that may call the API
// with credentials. A "*" entry admits any origin.
type OriginPolicy struct {
	allowAll bool
	allowed  map[string]bool
}

func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			p.allowAll = true
		}
		if o != "" {
			p.allowed[o] = true
		}
	}
	return p
}

// Allowed reports whether origin is on the list.
func (p *OriginPolicy) Allowed(origin string) bool {
	return origin != "" && (p.allowAll || p.allowed[origin])
}

// CrossSite reports whether any origin is configured at all, meaning pages
// on other sites embed the widget.
func (p *OriginPolicy) CrossSite() bool {
	return p.allowAll || len(p.allowed) > 0
}

// CheckOrigin vets a WebSocket handshake. Requests without an Origin header
// come from non-browser clients; same-host pages and listed origins pass.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if p.Allowed(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
