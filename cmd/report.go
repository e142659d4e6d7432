package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/export"
	"github.com/sells-group/leadscore/internal/store"
)

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a summary report of stored leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "load stats")
		}

		leads, err := st.ListLeads(ctx, store.LeadFilter{Limit: -1})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		report := export.Report(stats, leads)
		fmt.Println(report)

		if reportOut != "" {
			if err := os.WriteFile(reportOut, []byte(report), 0o644); err != nil {
				return eris.Wrap(err, "write report file")
			}
			zap.L().Info("report saved", zap.String("path", reportOut))
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "", "also write the report to this file")
	rootCmd.AddCommand(reportCmd)
}
