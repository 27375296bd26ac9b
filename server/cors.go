package server

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/nident/identity-server/clients"
)

// originPolicy matches request origins against a comma-separated pattern
// list. "*" inside a pattern is a wildcard segment, a lone "*" allows every
// origin, and an empty list allows none.
type originPolicy struct {
	allowAll bool
	patterns []*regexp.Regexp
}

func newOriginPolicy(allowedOrigin string) (*originPolicy, error) {
	p := &originPolicy{}
	for _, pattern := range strings.Split(allowedOrigin, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if pattern == "*" {
			p.allowAll = true
			continue
		}
		re, err := compileOriginPattern(pattern)
		if err != nil {
			return nil, err
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

func compileOriginPattern(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, "[^/]*") + "$")
	if err != nil {
		return nil, errors.Wrapf(err, "[compileOriginPattern] %q", pattern)
	}
	return re, nil
}

func (p *originPolicy) matches(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowAll {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// PreflightHandler answers CORS preflight requests on the public endpoints.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.origins.matches(origin) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		headers := r.Header.Get("Access-Control-Request-Headers")
		if headers == "" {
			headers = "Authorization, Content-Type"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", headers)
		w.Header().Set("Vary", "Origin")
		w.WriteHeader(http.StatusNoContent)
	}
}

// applyCORS stamps response CORS headers when the origin passes the server
// policy. Public clients additionally restrict the origin to their own
// allowed-origin pattern; confidential clients authenticate with a secret
// and carry no origin restriction.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request, client *clients.Client) {
	origin := r.Header.Get("Origin")
	if !s.origins.matches(origin) {
		return
	}
	if client != nil && client.IsPublic() && client.AllowedOrigin != "" {
		clientPolicy, err := newOriginPolicy(client.AllowedOrigin)
		if err != nil || !clientPolicy.matches(origin) {
			return
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
}
