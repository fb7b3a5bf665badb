package api

import "github.com/kasakmasrani/CampusSync-AI/pkg/logger"

const (
	defaultTopN    = 5
	defaultMaxTopN = 50
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAuthenticator enables bearer token verification.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithCORSOrigins allows browser requests from origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

// WithRateLimit caps requests per client IP per minute. 0 disables limiting.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.ratePerMin = perMinute
		}
	}
}

// WithSimilarTopN sets the default and maximum ?top of the similarity endpoint.
func WithSimilarTopN(def, maxTop int) Option {
	return func(s *Server) {
		if def > 0 {
			s.topN = def
		}
		if maxTop > 0 {
			s.maxTopN = maxTop
		}
		if s.topN > s.maxTopN {
			s.topN = s.maxTopN
		}
	}
}

// WithLogger sets the logger used for request level diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
