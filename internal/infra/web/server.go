package web

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"streamgate/internal/domain"
	"streamgate/internal/infra/logging"
	"streamgate/internal/infra/metrics"
	"streamgate/internal/infra/redis"
	"streamgate/internal/usecase"
)

// Server wires the admin API and the public validate endpoint.
type Server struct {
	codeUC     usecase.CodeUseCase
	logUC      usecase.LogUseCase
	reportUC   usecase.ReportUseCase
	limiter    *redis.RateLimiter
	rateLimit  int
	adminToken string
	dev        bool
	log        *zerolog.Logger
}

func NewServer(
	codeUC usecase.CodeUseCase,
	logUC usecase.LogUseCase,
	reportUC usecase.ReportUseCase,
	limiter *redis.RateLimiter,
	rateLimit int,
	adminToken string,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		codeUC:     codeUC,
		logUC:      logUC,
		reportUC:   reportUC,
		limiter:    limiter,
		rateLimit:  rateLimit,
		adminToken: adminToken,
		dev:        dev,
		log:        logger,
	}
}

// Routes builds the router. Everything under /api/v1 except code validation
// sits behind the admin bearer token; validation stays public (any client
// holding a code may redeem it) but is rate-limited per client IP.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Mixed-auth endpoint: the handler checks the bearer token itself for
		// privileged actions, validate stays open.
		r.With(s.validateRateLimit).Post("/access-codes", s.handleAccessCodeAction)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/access-codes", s.handleAccessCodeAdmin)
			r.Delete("/access-codes/{code}", s.handleRevokeCode)

			r.Get("/activity-logs", s.handleLogsQuery)
			r.Post("/activity-logs", s.handleLogsAction)
			r.Delete("/activity-logs", s.handleLogsBulkDelete)
			r.Get("/activity-logs/export", s.handleLogsExport)
			r.Post("/activity-logs/export", s.handleLogsExportPost)

			r.Post("/reports", s.handleReportCreate)
			r.Get("/reports", s.handleReportList)
			r.Get("/reports/{id}", s.handleReportGet)
			r.Delete("/reports/{id}", s.handleReportDelete)
			r.Get("/reports/{id}/latest", s.handleReportDownload)
		})
	})

	return r
}

// authMiddleware provides static Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.adminToken == "" {
		return false
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return false
	}
	tokenParts := strings.SplitN(authHeader, " ", 2)
	if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
		return false
	}
	return strings.TrimSpace(tokenParts[1]) == s.adminToken
}

// validateRateLimit guards the public endpoint against code guessing.
// Redis failures fail open: guessing protection is not worth an outage.
func (s *Server) validateRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || s.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		allowed, remaining, err := s.limiter.Allow(r.Context(), redis.ValidateAttemptKey(ip), s.rateLimit, time.Minute)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.rateLimit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags every request with a trace id and the client ip. The ip
// is redacted outside dev mode so access logs do not retain raw addresses.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		ctx = logging.WithIP(ctx, logging.Redact(clientIP(r), s.dev))
		r = r.WithContext(ctx)

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.ObserveHTTP(r.URL.Path, rec.status, float64(elapsed.Milliseconds()))
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request")
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Str("path", r.URL.Path).
					Msg("panic recovered")
				writeError(w, http.StatusInternalServerError, "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop; the dashboard sits behind
// a reverse proxy in every deployed configuration.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
