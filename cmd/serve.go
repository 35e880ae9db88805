package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/api"
	"github.com/sells-group/crime-observatory/internal/dashboard"
	"github.com/sells-group/crime-observatory/internal/dataset"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the reference datasets and start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := dataset.Load(ctx, dataset.Sources{
			IncidentsPath:  cfg.Data.Incidents,
			PopulationPath: cfg.Data.Population,
			BoundariesPath: cfg.Data.Boundaries,
		})
		if err != nil {
			return err
		}
		zap.L().Info("reference data loaded",
			zap.Int("incidents", len(st.Incidents)),
			zap.Int("municipalities", len(st.Boundaries)),
			zap.Int("min_year", st.MinYear),
			zap.Int("max_year", st.MaxYear),
		)

		store, err := dashboard.OpenStore(cfg.Dashboards.RegistryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		dash, err := dashboard.NewService(store, cfg.Dashboards.DataDir)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		server := api.NewServer(st, dash, cfg.Projection.LookbackYears, cfg.Projection.TrendHorizon)
		srv := server.HTTPServer(fmt.Sprintf(":%d", port), cfg.Server.AllowedOrigins)

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrapf(err, "listen on port %d", port)
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return api.Serve(ctx, srv, ln)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
