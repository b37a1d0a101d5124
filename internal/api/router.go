/**
 * @description
 * HTTP router setup for the approval service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/logging"
	"github.com/payflow/approval-service/internal/metrics"
	"go.uber.org/zap"
)

// RouterOptions configures the cross-cutting parts of the router.
type RouterOptions struct {
	Tokens                  TokenParser
	InternalAPIKey          string
	AllowedOrigins          []string
	LoginLimiter            RateLimiter
	LoginRateLimitPerMinute int
	Logger                  *zap.Logger
}

// NewRouter creates a new Chi router and registers the approval routes.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/internal/tasks", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))
		r.Post("/recurring/run", h.RunRecurrenceHandler)
	})

	r.Route("/api", func(r chi.Router) {
		r.With(LoginRateLimitMiddleware(opts.LoginLimiter, opts.LoginRateLimitPerMinute, logger)).
			Post("/auth/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(opts.Tokens))

			r.Route("/users", func(r chi.Router) {
				r.Use(RequireRoles(domain.RoleAdmin))
				r.Get("/", h.ListUsersHandler)
				r.Post("/", h.CreateUserHandler)
				r.Get("/{id}", h.GetUserHandler)
				r.Put("/{id}", h.UpdateUserHandler)
				r.Delete("/{id}", h.DeleteUserHandler)
				r.Post("/{id}/unlock", h.UnlockUserHandler)
			})

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListPaymentRequestsHandler)
				r.Get("/{id}", h.GetPaymentRequestHandler)
				r.With(RequireRoles(domain.RoleRequester)).Post("/", h.CreatePaymentRequestHandler)
				r.With(RequireRoles(domain.RoleApprover)).Put("/{id}/status", h.ReviewPaymentRequestHandler)
				r.With(RequireRoles(domain.RoleBankPayer)).Put("/{id}/pay", h.PayPaymentRequestHandler)
				r.With(RequireRoles(domain.RoleAdmin)).Delete("/{id}", h.DeletePaymentRequestHandler)
			})

			r.Route("/recurring", func(r chi.Router) {
				r.Get("/", h.ListTemplatesHandler)
				r.With(RequireRoles(domain.RoleRequester)).Post("/", h.CreateTemplateHandler)
				r.Delete("/{id}", h.DeactivateTemplateHandler)
				r.Put("/{id}/next-due", h.RescheduleTemplateHandler)
			})

			r.With(RequireRoles(domain.RoleAdmin)).Post("/tasks/recurring/run", h.RunRecurrenceHandler)
		})
	})

	return r
}
