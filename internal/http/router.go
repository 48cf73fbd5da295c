package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pribylovaa/fromboo/internal/config"
	apierrors "github.com/pribylovaa/fromboo/internal/errors"
	"github.com/pribylovaa/fromboo/internal/http/handlers"
	"github.com/pribylovaa/fromboo/internal/http/middleware"
	"github.com/pribylovaa/fromboo/internal/metrics"
	"github.com/pribylovaa/fromboo/internal/ratelimit"
)

// Service - всё, что HTTP-слою нужно от сервисного слоя.
type Service interface {
	handlers.Service
	middleware.AccessResolver
}

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger         *slog.Logger
	Timeout        time.Duration
	Cookie         config.CookieConfig
	AllowedOrigins []string
	// TrustProxyHeaders - брать адрес клиента из X-Forwarded-For/X-Real-IP.
	// По умолчанию адрес берётся из сокета.
	TrustProxyHeaders bool
	Limiter           ratelimit.Limiter // nil - без ограничения частоты
	Metrics           *metrics.Metrics  // nil - без метрик
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(middleware.Recover()) // безопасно ловим паники
	if opts.TrustProxyHeaders {
		root.Use(chimw.RealIP) // RemoteAddr из X-Forwarded-For/X-Real-IP
	}
	root.Use(
		middleware.RequestID(),               // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger),      // кладём request-scoped логгер в контекст и логируем
		opts.Metrics.Instrument,              // RPS/latency по шаблону маршрута
		middleware.CORS(opts.AllowedOrigins), // браузерные клиенты с cookie
		middleware.Timeout(opts.Timeout),     // общий дедлайн запроса
	)

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, apierrors.ErrNotFound)
	})
	root.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, apierrors.ErrMethodNotAllowed)
	})

	h := handlers.New(svc, opts.Cookie, opts.Metrics)
	registerRoutes(root, h, svc, opts)

	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, svc Service, opts Options) {
	// login
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.Limiter, opts.Metrics))
		r.Post("/login/token", h.LoginForAccessToken)
		r.Post("/login/refresh", h.RefreshToken)
	})

	// user
	r.Post("/user/", h.CreateUser)
	r.With(middleware.RequireAuth(svc)).Get("/user/get-user", h.GetUser)
}
