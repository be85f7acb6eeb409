package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goodsign/monday"

	"gastos/internal/auth"
	"gastos/internal/core"
	"gastos/internal/draft"
	applog "gastos/internal/log"
	"gastos/internal/members"
	"gastos/internal/metrics"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
	"gastos/internal/period"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "gastos_session"

// Expenses is the expense repository the handlers drive.
type Expenses interface {
	ListAll(ctx context.Context) ([]core.Expense, error)
	ListMonth(ctx context.Context, m period.Month) ([]core.Expense, error)
	CreateSplit(ctx context.Context, e core.Expense, members []string) ([]core.Expense, error)
	Update(ctx context.Context, id string, e core.Expense, members []string) ([]core.Expense, error)
	Delete(ctx context.Context, id string) ([]core.Expense, error)
	Get(ctx context.Context, id string) (core.Expense, error)
}

// DarkMode is the device-local theme preference.
type DarkMode interface {
	DarkMode() bool
	SetDarkMode(on bool) error
}

// Deps are the collaborators of the server. Google may be nil, which
// disables Google sign-in.
type Deps struct {
	Expenses  Expenses
	Members   *members.Registry
	Drafts    *draft.Store
	Prefs     DarkMode
	Gate      *auth.Gate
	JWT       *auth.JWTManager
	Passwords auth.Authenticator
	Google    *auth.GoogleProvider

	// Ready reports backend health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error

	Locale             monday.Locale
	Now                func() time.Time
	Logger             *applog.Logger
	LoginRatePerMinute int
	SecureCookies      bool
}

type Server struct {
	http.Server
	deps       Deps
	logger     *applog.Logger
	structured *applog.StructuredLogger
	limiter    *ratelimit.Limiter
	detector   *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locale == "" {
		deps.Locale = period.DefaultLocale
	}
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	logger := deps.Logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		deps:       deps,
		logger:     logger,
		structured: applog.NewStructuredLogger(deps.Logger),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.LoginRatePerMinute}),
		detector:   security.NewDetector(),
	}

	loginLimit := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /auth/login", loginLimit(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /auth/google/login", loginLimit(http.HandlerFunc(s.handleGoogleLogin)))
	mux.HandleFunc("GET /auth/google/callback", s.handleGoogleCallback)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/me", s.requireSession(s.handleMe))

	mux.HandleFunc("GET /api/expenses", s.requireSession(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireSession(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.requireSession(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireSession(s.handleDeleteExpense))
	mux.HandleFunc("GET /api/expenses/grouped", s.requireSession(s.handleGrouped))
	mux.HandleFunc("GET /api/summary", s.requireSession(s.handleSummary))
	mux.HandleFunc("GET /api/series", s.requireSession(s.handleSeries))
	mux.HandleFunc("GET /api/metrics", s.requireSession(s.handleMetrics))
	mux.HandleFunc("GET /api/months", s.requireSession(s.handleMonths))
	mux.HandleFunc("GET /api/export", s.requireSession(s.handleExport))

	mux.HandleFunc("GET /api/members", s.requireSession(s.handleListMembers))
	mux.HandleFunc("POST /api/members", s.requireSession(s.handleAddMember))
	mux.HandleFunc("PUT /api/members/{name}", s.requireSession(s.handleRenameMember))
	mux.HandleFunc("DELETE /api/members/{name}", s.requireSession(s.handleRemoveMember))

	mux.HandleFunc("GET /api/draft", s.requireSession(s.handleGetDraft))
	mux.HandleFunc("PUT /api/draft", s.requireSession(s.handlePutDraft))
	mux.HandleFunc("DELETE /api/draft", s.requireSession(s.handleResetDraft))
	mux.HandleFunc("POST /api/draft/toggle", s.requireSession(s.handleToggleDraft))
	mux.HandleFunc("POST /api/draft/edit/{id}", s.requireSession(s.handleEditDraft))
	mux.HandleFunc("POST /api/draft/submit", s.requireSession(s.handleSubmitDraft))

	mux.HandleFunc("GET /api/preferences/dark-mode", s.requireSession(s.handleGetDarkMode))
	mux.HandleFunc("PUT /api/preferences/dark-mode", s.requireSession(s.handleSetDarkMode))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(headers.Middleware(s.detector.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "Servicio no disponible.").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Demasiados intentos. Espera un momento.").Write(w)
}

// requireSession admits requests carrying a valid session cookie or bearer
// token and stores the claims in the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			s.writeError(w, r, auth.ErrMissingToken)
			return
		}
		claims, err := s.deps.JWT.Validate(token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(withClaims(r.Context(), claims)))
	}
}

// writeError maps err onto a response, logging server-side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if IsServerError(err) {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, r.Method+" "+r.URL.Path,
			applog.NewFields().WithAccount(account(r.Context())))
	}
	FromError(err).Write(w)
}

func (s *Server) today() time.Time {
	return s.deps.Now()
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
