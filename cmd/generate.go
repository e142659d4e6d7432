package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	generateMaxQueries int
	generateDelaySecs  float64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Discover new leads from the search query catalog",
	Long:  "Searches the web for each catalog query, scrapes the result pages, extracts company leads via LLM, and stores deduplicated leads.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if generateDelaySecs > 0 {
			cfg.Generate.RequestsPerSecond = 1 / generateDelaySecs
		}

		env, err := initEnv(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Generator.Run(ctx, generateMaxQueries)
		if err != nil {
			return err
		}

		zap.L().Info("generation run complete",
			zap.Int("queries", summary.TotalQueries),
			zap.Int("leads", summary.TotalLeads),
		)
		return printJSON(summary)
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateMaxQueries, "max-queries", 5, "maximum number of catalog queries to process (0 = all)")
	generateCmd.Flags().Float64Var(&generateDelaySecs, "delay", 0, "seconds between outbound requests (overrides generate.requests_per_second)")
	rootCmd.AddCommand(generateCmd)
}
