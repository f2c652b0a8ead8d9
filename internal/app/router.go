package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viewdeck/viewdeck/internal/apperrors"
	"github.com/viewdeck/viewdeck/internal/audit"
	"github.com/viewdeck/viewdeck/internal/authgate"
	"github.com/viewdeck/viewdeck/internal/config"
	"github.com/viewdeck/viewdeck/internal/content"
	"github.com/viewdeck/viewdeck/internal/identity"
	"github.com/viewdeck/viewdeck/internal/invites"
	"github.com/viewdeck/viewdeck/internal/otp"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()

	// Middleware stack
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(apperrors.RequestIDMiddleware) // Add request ID to context
	r.Use(LoggingMiddleware)             // Structured request logging
	r.Use(RecoveryMiddleware)            // Recover from panics
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(identity.AuthMiddleware(cfg.JWTSecret)) // Validate session cookies

	// Shared services
	auditor := audit.NewWriter(pool)
	roleCfg := identity.RoleConfig{AdminEmails: cfg.AdminEmails, AdminDomain: cfg.AdminDomain}
	identitySvc := identity.NewService(pool, roleCfg, identity.NewBroadcaster())
	inviteSvc := invites.NewService(pool, cfg.InviteTTLDays)
	otpSvc := otp.NewService(pool, cfg.OTPTTLMinutes)
	gate := authgate.NewGate(inviteSvc, otpSvc, identitySvc)
	issueSession := authgate.NewSessionIssuer(cfg.JWTSecret, cfg.SessionDays, isProduction)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// Invite issuance: shared admin key or admin session
	r.With(ContentTypeJSON, AdminOnly(cfg.AdminKey)).
		Post("/admin-invite", invites.HandleIssue(pool, auditor, cfg.BaseURL, cfg.InviteTTLDays))

	// Standalone OTP entry point
	r.With(ContentTypeJSON, OTPRateLimitMiddleware(cfg.RateLimitRPM)).
		Post("/send-otp", otp.HandleSend(otpSvc, auditor))

	// Invite redemption flow
	r.Route("/invite/{token}", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", authgate.HandleCheck(gate))
		r.With(identity.RequireAuth).Post("/bind", authgate.HandleBind(gate, auditor, issueSession))
		r.With(LoginRateLimitMiddleware()).Post("/login", authgate.HandleLogin(gate, auditor, issueSession))
		r.With(OTPRateLimitMiddleware(cfg.RateLimitRPM)).Post("/signup", authgate.HandleSignup(gate, auditor))
		r.With(OTPRateLimitMiddleware(cfg.RateLimitRPM)).Post("/verify", authgate.HandleVerify(gate, auditor, issueSession))
	})

	// API routes - Authentication
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(LoginRateLimitMiddleware()).Post("/login", identity.HandleLogin(identitySvc, auditor, cfg.JWTSecret, cfg.SessionDays, isProduction))
		r.With(identity.RequireAuth).Post("/logout", identity.HandleLogout(identitySvc, auditor))
		r.Get("/session", identity.HandleSession())
	})

	// API routes - Invite administration
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequireAdmin)

		r.Get("/", invites.HandleList(pool, cfg.InviteTTLDays))
		r.Delete("/{invite_id}", invites.HandleRevoke(pool, auditor, cfg.InviteTTLDays))
	})

	// API routes - Catalog records; reads are public, writes admin only
	r.Route("/api/v1/records/{kind}", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", content.HandleList(pool))
		r.Get("/{record_id}", content.HandleGet(pool))

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireAdmin)
			r.Post("/", content.HandleCreate(pool))
			r.Put("/{record_id}", content.HandleUpdate(pool))
			r.Delete("/{record_id}", content.HandleDelete(pool))
		})
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteErrorStatus(w, r, http.StatusServiceUnavailable, "not_ready", "Database connection failed")
			return
		}

		apperrors.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
