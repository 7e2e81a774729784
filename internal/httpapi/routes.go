package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/labcards/internal/session"
	"github.com/DoyleJ11/labcards/internal/ws"
)

type Deps struct {
	Session          *session.Session
	Logger           *zap.Logger
	StaticDir        string
	InstructionsPath string
	WS               ws.Options
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log.Named("http")))

	// Public routes
	r.Get("/", Index(d.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	r.Get("/instructions", Instructions(d.InstructionsPath))
	r.Get("/healthz", Healthz(d.Session, log))
	r.Get("/ws", ws.Handler(d.Session, log.Named("ws"), d.WS))
	return r
}

// requestLogger logs completed plain requests. Websocket upgrades are skipped
// since they last for the whole connection.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
