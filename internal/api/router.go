package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ponto-labs/pontual/internal/api/auth"
	"github.com/ponto-labs/pontual/internal/api/entries"
	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/api/organizations"
	"github.com/ponto-labs/pontual/internal/api/projects"
	"github.com/ponto-labs/pontual/internal/api/reports"
	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/permissions"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Create JWT service
	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)

	// Create lockout tracker
	lockoutTracker := auth.NewLockoutTracker(s.config.LockoutThreshold, s.config.LockoutDuration)

	// Create rate limiters
	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (mostly public)
		r.Route("/auth", func(r chi.Router) {
			authHandler := auth.NewHandler(
				s.storage,
				jwtService,
				lockoutTracker,
				s.config.RefreshTokenTTL,
			)

			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
				r.Put("/me", authHandler.UpdateMe)
				r.Put("/me/password", authHandler.ChangePassword)
			})
		})

		// Everything below requires authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService))
			r.Use(middleware.RateLimitByUser(userLimiter))

			orgHandler := organizations.NewHandler(s.storage)
			projectHandler := projects.NewHandler(s.storage)
			entryHandler := entries.NewHandler(s.storage, s.timers)
			reportHandler := reports.NewHandler(s.storage)

			// Live timer (user scoped, not organization scoped)
			r.Route("/timer", func(r chi.Router) {
				r.Post("/start", entryHandler.StartTimer)
				r.Post("/stop", entryHandler.StopTimer)
				r.Get("/active", entryHandler.ActiveTimer)
			})

			// The caller's own entries across all organizations
			r.Route("/entries", func(r chi.Router) {
				r.Get("/", entryHandler.ListMine)
				r.Post("/", entryHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", entryHandler.Update)
					r.Delete("/", entryHandler.Delete)
				})
			})

			// Personal dashboard summary
			r.Get("/reports/overview", reportHandler.Overview)

			// Organizations
			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Post("/", orgHandler.Create)

				// Organization scoped routes. The membership middleware
				// resolves the caller's role; non-members are rejected.
				r.Route("/{orgID}", func(r chi.Router) {
					r.Use(middleware.OrganizationMember(s.storage))

					r.Get("/", orgHandler.Get)
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireCapability(permissions.CapEditOrganization))
						r.Put("/", orgHandler.Update)
						r.Delete("/", orgHandler.Delete)
					})

					r.Route("/members", func(r chi.Router) {
						r.Get("/", orgHandler.ListMembers)
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequireCapability(permissions.CapManageMembers))
							r.Post("/", orgHandler.AddMember)
							r.Put("/{userID}", orgHandler.UpdateMemberRole)
							r.Delete("/{userID}", orgHandler.RemoveMember)
						})
					})

					r.Route("/projects", func(r chi.Router) {
						r.Get("/", projectHandler.List)
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequireCapability(permissions.CapManageProjects))
							r.Post("/", projectHandler.Create)
						})
						r.Route("/{projectID}", func(r chi.Router) {
							r.Get("/", projectHandler.Get)
							r.Group(func(r chi.Router) {
								r.Use(middleware.RequireCapability(permissions.CapManageProjects))
								r.Put("/", projectHandler.Update)
							})
							r.Group(func(r chi.Router) {
								r.Use(middleware.RequireCapability(permissions.CapDeleteProjects))
								r.Delete("/", projectHandler.Delete)
							})
							r.Group(func(r chi.Router) {
								r.Use(middleware.RequireCapability(permissions.CapFinishProjects))
								r.Post("/finish", projectHandler.Finish)
								r.Post("/reopen", projectHandler.Reopen)
							})
						})
					})

					// Entries within the organization. Members always see
					// their own; seeing everyone needs the view capability,
					// checked in the handler.
					r.Get("/entries", entryHandler.ListOrganization)

					r.Route("/reports", func(r chi.Router) {
						r.Get("/days", reportHandler.Days)
						r.Get("/projects", reportHandler.Projects)
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequireCapability(permissions.CapViewAllEntries))
							r.Get("/users", reportHandler.Users)
						})
					})
				})
			})
		})
	})

	// Health check (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.OK(w, map[string]string{"status": "ok"})
	})

	return r
}
