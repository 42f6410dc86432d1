package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/app"
)

// RouterConfig carries the transport settings taken from config.
type RouterConfig struct {
	Origins      []string
	SecureCookie bool
	CookieMaxAge time.Duration
	Log          logrus.FieldLogger
}

// NewRouter wires the JSON API and the leaderboard websocket.
func NewRouter(service *app.QuizService, tokens TokenCodec, cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	origins, credentials := corsOrigins(cfg.Origins)

	h := &Handler{
		service: service,
		cookies: cookieJar{tokens: tokens, secure: cfg.SecureCookie, maxAge: cfg.CookieMaxAge},
		log:     log,
	}
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: credentials,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.health)
	r.Get("/ws/leaderboard", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", h.overview)
		r.Post("/questions", h.importQuestions)
		r.Post("/reset", h.reset)
		r.Post("/sessions", h.startSession)
		r.Get("/leaderboard", h.leaderboard)

		r.Route("/session", func(r chi.Router) {
			r.Get("/question", h.currentQuestion)
			r.Post("/answers", h.submitAnswer)
			r.Post("/finish", h.finish)
			r.Get("/review", h.review)
			r.Post("/restart", h.restart)
			r.Delete("/", h.terminate)
		})
	})
	return r
}

// corsOrigins allows credentials only for an explicit origin list. An empty
// list or a wildcard admits any origin without cookies.
func corsOrigins(configured []string) ([]string, bool) {
	var origins []string
	for _, o := range configured {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}, false
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		return []string{"*"}, false
	}
	return origins, true
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}
