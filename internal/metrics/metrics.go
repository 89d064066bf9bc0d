// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	LoginSuccess  = "success"
	LoginMissing  = "missing_credentials"
	LoginInvalid  = "invalid_credentials"
	LoginDisabled = "disabled"
	LoginLimited  = "rate_limited"
	LoginError    = "error"
)

// Token validation outcomes.
const (
	TokenValid     = "valid"
	TokenMalformed = "malformed"
	TokenNotFound  = "not_found"
	TokenExpired   = "expired"
	TokenInactive  = "inactive"
	TokenError     = "error"
)

var (
	LoginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "textsync_login_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	TokenValidationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "textsync_token_validation_total",
		Help: "Token validations by outcome",
	}, []string{"outcome"})

	ShortcutsServed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "textsync_shortcuts_served_total",
		Help: "Shortcuts returned to sync clients",
	})

	TokensSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "textsync_tokens_swept_total",
		Help: "Expired tokens deleted by the sweeper",
	})

	SeedApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "textsync_seed_apply_total",
		Help: "Seed file applications by result",
	}, []string{"result"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "textsync_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status",
		Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 14),
	}, []string{"method", "status"})
)

func init() {
	prometheus.MustRegister(LoginTotal)
	prometheus.MustRegister(TokenValidationTotal)
	prometheus.MustRegister(ShortcutsServed)
	prometheus.MustRegister(TokensSwept)
	prometheus.MustRegister(SeedApplyTotal)
	prometheus.MustRegister(RequestDuration)
}

func IncLogin(outcome string) {
	LoginTotal.WithLabelValues(outcome).Inc()
}

func IncTokenValidation(outcome string) {
	TokenValidationTotal.WithLabelValues(outcome).Inc()
}

func AddShortcutsServed(n int) {
	ShortcutsServed.Add(float64(n))
}

func AddTokensSwept(n int64) {
	TokensSwept.Add(float64(n))
}

func IncSeedApply(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	SeedApplyTotal.WithLabelValues(result).Inc()
}

func ObserveRequest(method string, status int, d time.Duration) {
	RequestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}
