package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crime-observatory/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crime-observatory",
	Short: "Crime incident analytics dashboard for Ceará",
	Long:  "Loads the state incident, population and boundary reference files and serves aggregated charts, choropleth maps and custom dashboards over an HTTP JSON API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
