package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shambasecure/shamba-auth/pkg/client"
	"github.com/shambasecure/shamba-auth/pkg/device"
)

// Config holds rate limiting configuration.
type Config struct {
	// Per-IP rate limiting across all routes
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64 // Requests per second

	// Per-user rate limiting for authenticated requests
	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64

	// Endpoint-specific limits keyed by "METHOD /path"
	EndpointLimits map[string]EndpointLimit

	// How long to keep inactive buckets in memory
	BucketTTL time.Duration

	// Include X-RateLimit headers in responses
	IncludeHeaders bool
}

// EndpointLimit defines rate limits for a specific endpoint.
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// DefaultConfig returns the limits used by the auth service: a general
// per-IP budget plus a tight budget on the email-sending endpoint, since
// each request there costs an outbound email.
func DefaultConfig() *Config {
	return &Config{
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		PerUserEnabled:    true,
		PerUserCapacity:   200,
		PerUserRefillRate: 200.0 / 60.0,

		BucketTTL:      time.Hour,
		IncludeHeaders: true,

		EndpointLimits: map[string]EndpointLimit{
			"POST /api/auth/send-magic-link": {
				Capacity:   5,
				RefillRate: 5.0 / 60.0,
			},
			"POST /api/auth/verify-device": {
				Capacity:   10,
				RefillRate: 10.0 / 60.0,
			},
		},
	}
}

// Middleware holds the rate limiting middleware state.
type Middleware struct {
	config           *Config
	ipLimiter        *RateLimiter
	userLimiter      *RateLimiter
	endpointLimiters map[string]*RateLimiter
}

// NewMiddleware creates a new rate limiting middleware.
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:           config,
		endpointLimiters: make(map[string]*RateLimiter),
	}

	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}
	if config.PerUserEnabled {
		m.userLimiter = NewRateLimiter(config.PerUserCapacity, config.PerUserRefillRate, config.BucketTTL)
	}
	for endpoint, limit := range config.EndpointLimits {
		m.endpointLimiters[endpoint] = NewRateLimiter(limit.Capacity, limit.RefillRate, config.BucketTTL)
	}

	return m
}

// Handler returns the rate limiting middleware handler. Must run after the
// auth middleware for per-user limits to see the principal.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := device.ClientIP(r)
		if m.config.PerIPEnabled && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip")
			return
		}

		uid := authUserID(r)
		if m.config.PerUserEnabled && uid != "" && !m.userLimiter.Allow(uid) {
			m.rateLimitExceeded(w, r, "user")
			return
		}

		endpointKey := r.Method + " " + r.URL.Path
		if limiter, exists := m.endpointLimiters[endpointKey]; exists {
			if !limiter.Allow(ip + ":" + endpointKey) {
				m.rateLimitExceeded(w, r, "endpoint")
				return
			}
		}

		if m.config.IncludeHeaders {
			m.addRateLimitHeaders(w, ip, uid)
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", device.ClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"success":false,"error":"Too many requests. Please try again later."}`))
}

func (m *Middleware) addRateLimitHeaders(w http.ResponseWriter, ip, uid string) {
	if m.config.PerIPEnabled && ip != "" {
		w.Header().Set("X-RateLimit-Limit-IP", fmt.Sprintf("%d", m.config.PerIPCapacity))
	}
	if m.config.PerUserEnabled && uid != "" {
		w.Header().Set("X-RateLimit-Limit-User", fmt.Sprintf("%d", m.config.PerUserCapacity))
	}
}

func authUserID(r *http.Request) string {
	if user := client.AuthUser(r); user != nil {
		return user.UID
	}
	return ""
}
