package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/export"
	"github.com/sells-group/leadscore/internal/model"
	"github.com/sells-group/leadscore/internal/store"
)

var (
	exportOut      string
	exportMinScore float64
	exportStatus   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
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

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status:   model.LeadStatus(exportStatus),
			MinScore: exportMinScore,
			Limit:    -1,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if err := export.ToFile(exportOut, leads); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("leads", len(leads)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.csv", "output path (.csv or .xlsx)")
	exportCmd.Flags().Float64Var(&exportMinScore, "min-score", 0, "only export leads at or above this score")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only export leads with this status")
	rootCmd.AddCommand(exportCmd)
}
