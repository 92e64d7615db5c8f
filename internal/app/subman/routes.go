package subman

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subman/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subman/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subman/internal/http/handlers/health"
	"github.com/magabrotheeeer/subman/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/subman/internal/http/handlers/subscription/duesoon"
	sublist "github.com/magabrotheeeer/subman/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/subman/internal/http/handlers/subscription/payment"
	subread "github.com/magabrotheeeer/subman/internal/http/handlers/subscription/read"
	subremove "github.com/magabrotheeeer/subman/internal/http/handlers/subscription/remove"
	"github.com/magabrotheeeer/subman/internal/http/handlers/subscription/search"
	"github.com/magabrotheeeer/subman/internal/http/handlers/subscription/sorted"
	subupdate "github.com/magabrotheeeer/subman/internal/http/handlers/subscription/update"
	userlist "github.com/magabrotheeeer/subman/internal/http/handlers/user/list"
	userread "github.com/magabrotheeeer/subman/internal/http/handlers/user/read"
	userremove "github.com/magabrotheeeer/subman/internal/http/handlers/user/remove"
	userupdate "github.com/magabrotheeeer/subman/internal/http/handlers/user/update"
	"github.com/magabrotheeeer/subman/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subman/internal/lib/metrics"
	authservice "github.com/magabrotheeeer/subman/internal/services/auth"
	subservice "github.com/magabrotheeeer/subman/internal/services/subscription"
	userservice "github.com/magabrotheeeer/subman/internal/services/user"

	_ "github.com/magabrotheeeer/subman/docs" // swagger
)

// Deps — всё, что нужно маршрутам.
type Deps struct {
	Auth          *authservice.AuthService
	Users         *userservice.UserService
	Subscriptions *subservice.SubscriptionService
	Tokens        middlewarectx.TokenService
	UserFinder    middlewarectx.UserFinder
	Limiter       *rate.Limiter
	Metrics       *metrics.HTTP
	Gatherer      prometheus.Gatherer
}

// NewRouter собирает маршрутизатор приложения.
func NewRouter(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middlewarectx.Metrics(d.Metrics),
		middlewarectx.Authenticate(d.Tokens, d.UserFinder, logger),
	)

	r.Route("/api", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, d.Limiter))
			r.Post("/users", register.New(logger, d.Auth).ServeHTTP)
			r.Post("/users/login", login.New(logger, d.Auth).ServeHTTP)
		})

		// Требуют установленной личности
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireUser(logger))

			r.Get("/users", userlist.New(logger, d.Users).ServeHTTP)
			r.Get("/users/{id}", userread.New(logger, d.Users).ServeHTTP)
			r.Put("/users/{id}", userupdate.New(logger, d.Users).ServeHTTP)
			r.Delete("/users/{id}", userremove.New(logger, d.Users).ServeHTTP)

			r.Get("/subscriptions", sublist.New(logger, d.Subscriptions).ServeHTTP)
			r.Post("/subscriptions", create.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/search", search.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/sorted", sorted.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/due-soon", duesoon.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/{id}", subread.New(logger, d.Subscriptions).ServeHTTP)
			r.Put("/subscriptions/{id}", subupdate.New(logger, d.Subscriptions).ServeHTTP)
			r.Delete("/subscriptions/{id}", subremove.New(logger, d.Subscriptions).ServeHTTP)
			r.Post("/subscriptions/{id}/payments", payment.New(logger, d.Subscriptions).ServeHTTP)
		})
	})

	r.Get("/health", health.New().ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)

	return r
}
