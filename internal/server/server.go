package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/christopherklint97/imputr/internal/report"
	"github.com/christopherklint97/imputr/internal/timely"
)

// EventPager returns one page of raw Timely events. *timely.Client implements it.
type EventPager interface {
	EventsPage(ctx context.Context, accountID, since, upto string, page int) ([]timely.Event, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	gen    *report.Generator
	pager  EventPager
	now    func() time.Time
	logger *slog.Logger
	server *http.Server
}

func New(cfg Config, gen *report.Generator, pager EventPager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		gen:    gen,
		pager:  pager,
		now:    time.Now,
		logger: logger,
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo),
			NoColor: true,
		}),
	)

	r.Get("/healthz", s.health)
	r.Route("/{accountID}", func(r chi.Router) {
		r.Get("/events", s.events)
		r.Get("/report", s.report)
		r.Get("/analysis", s.analysis)
	})

	return r
}

// Start runs the HTTP server in the current goroutine.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
