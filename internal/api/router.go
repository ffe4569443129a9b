package api

import (
	_ "embed"
	"net/http"
	"time"

	"problem_market/internal/api/handler"
	"problem_market/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.yaml
var openAPISpec []byte

type Dependencies struct {
	TokenAuth          *jwtauth.JWTAuth
	Identity           middleware.IdentityResolver
	Limiter            middleware.Limiter // nil disables rate limiting
	ProblemService     handler.ProblemService
	SubmissionService  handler.SubmissionService
	UserService        handler.UserService
	LeaderboardService handler.LeaderboardService
	AllowedOrigins     []string
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Verifies the bearer token when present; Authenticator enforces it per route.
	r.Use(jwtauth.Verifier(deps.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		w.Write(openAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	auth := middleware.Authenticator(deps.Identity)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.RateLimit(deps.Limiter, middleware.GlobalLimit))

		problemHandler := handler.NewProblemHandler(deps.ProblemService, auth, deps.Limiter)
		v1.Route("/problems", problemHandler.RegisterRoutes)

		submissionHandler := handler.NewSubmissionHandler(deps.SubmissionService, auth, deps.Limiter)
		v1.Route("/submissions", submissionHandler.RegisterRoutes)

		userHandler := handler.NewUserHandler(deps.UserService, deps.LeaderboardService, auth, deps.Limiter)
		v1.Route("/users", userHandler.RegisterRoutes)
	})

	return r
}
