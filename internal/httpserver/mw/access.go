package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/utils"
)

const forbiddenMessage = "You do not have permission to perform this action."

// AllowOnlyCIDRS restricts a route to clients inside the allowed IPs/CIDRs.
// An empty list disables the check. Malformed entries are logged and skipped.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m, invalid := utils.NewIPMatcher(allowed)
	for _, s := range invalid {
		log.Warn("ignoring malformed allow-list entry", logger.String("entry", s))
	}
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Info("ops request rejected by allow list",
					logger.String("path", r.URL.Path),
					logger.String("client_ip", ip))
				writeDetail(w, http.StatusForbidden, forbiddenMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost accepts a request only when its Host (port ignored, case
// insensitive) matches one of allowedHosts. "*.example.com" matches any
// subdomain but not example.com itself. An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	patterns := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		patterns = append(patterns, strings.ToLower(strings.TrimSpace(h)))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := requestHost(r)
			for _, pattern := range patterns {
				if matchHost(host, pattern) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Info("request rejected by host check", logger.String("host", host))
			writeDetail(w, http.StatusForbidden, forbiddenMessage)
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

func matchHost(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix) && len(host) > len(suffix)
	}
	return false
}
