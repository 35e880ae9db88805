package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Router builds the chi mux with the full middleware chain and route table.
func (s *Server) Router(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(accessLog)
	r.Use(recoverPanic)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/year_range", s.handleYearRange)
		r.Get("/municipalities", s.handleMunicipalities)

		r.Get("/map_data/{viewType}", s.handleMapData)
		r.Post("/map_data/{viewType}", s.handleMapData)

		r.Get("/data/{chartName}", s.handleChartData)
		r.Post("/data/{chartName}", s.handleChartData)

		r.Post("/generic_chart", s.handleGenericChart)

		r.Post("/analyze_csv", s.handleAnalyzeCSV)
		r.Post("/create_dashboard", s.handleCreateDashboard)
		r.Get("/dashboards", s.handleListDashboards)
		r.Route("/dashboards/{dashboardID}", func(r chi.Router) {
			r.Get("/data", s.handleDashboardData)
			r.Post("/generic_chart", s.handleDashboardGenericChart)
			r.Delete("/", s.handleDeleteDashboard)
		})
	})

	return r
}

// HTTPServer wraps the router in a configured http.Server.
func (s *Server) HTTPServer(addr string, allowedOrigins []string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(allowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// shutdownTimeout bounds the drain of in-flight requests once a stop signal
// arrives.
const shutdownTimeout = 10 * time.Second

// Serve runs srv on ln until ctx is canceled, then shuts down gracefully.
// The drain uses a fresh timeout context: the signal context is already
// canceled at that point and would cut in-flight requests off immediately.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "api: serve")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return eris.Wrap(err, "api: shutdown")
	}
	if err := <-errCh; err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: serve")
	}
	return nil
}
