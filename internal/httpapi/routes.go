package httpapi

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/hub"
	"github.com/DoyleJ11/monkey-rooms-backend/internal/ws"
)

type RouteConfig struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRoutes(h *hub.Hub, d Deps, cfg RouteConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	limiter := NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Get("/healthz", Healthz)

	r.Route("/rooms", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/", CreateRoom(d))
		r.Get("/{code}", GetRoom(d))
		r.Put("/{code}", PutRoom(d))
		r.Delete("/{code}", DeleteRoom(d))
		r.Get("/{code}/ws", ws.Handler(h, d.Rooms, ws.Options{
			OriginPatterns: originPatterns(cfg.AllowedOrigins),
			StoreTimeout:   d.Timeout,
			Logger:         d.Logger,
		}))
	})

	r.Route("/scores", func(r chi.Router) {
		r.Get("/", TopScores(d))
		r.Post("/", SaveScore(d))
	})

	return r
}

// originPatterns turns configured origins into websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
