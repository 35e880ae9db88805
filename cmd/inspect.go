package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/crime-observatory/internal/dataset"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the reference datasets and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := dataset.Load(cmd.Context(), dataset.Sources{
			IncidentsPath:  cfg.Data.Incidents,
			PopulationPath: cfg.Data.Population,
			BoundariesPath: cfg.Data.Boundaries,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "incidents:       %d (%d-%d, last month %d)\n",
			len(st.Incidents), st.MinYear, st.MaxYear, st.LastObservedMonth)
		fmt.Fprintf(out, "population rows: %d\n", len(st.Population))
		fmt.Fprintf(out, "boundaries:      %d\n", len(st.Boundaries))
		fmt.Fprintf(out, "regions:         %d\n", len(st.Regions.Regions()))
		fmt.Fprintf(out, "categories:      %d\n", len(st.Categories))
		for _, c := range st.Categories {
			fmt.Fprintf(out, "  - %s\n", c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
