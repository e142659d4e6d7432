package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/model"
)

var (
	assessLeadID int64
	assessLimit  int
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Assess unassessed leads against the factor registry",
	Long:  "Runs the multi-factor assessment pipeline over stored leads: per-factor web search, LLM extraction, score aggregation, and persistence.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "assess")
		if err != nil {
			return err
		}
		defer env.Close()

		if assessLeadID > 0 {
			return assessOne(cmd, env, assessLeadID)
		}

		results, err := env.Assessor.AssessAll(ctx, assessLimit)
		if err != nil {
			return err
		}

		zap.L().Info("assessment run complete", zap.Int("leads", len(results)))
		return printJSON(results)
	},
}

// assessOne assesses a single lead by ID and persists the result.
func assessOne(cmd *cobra.Command, env *appEnv, id int64) error {
	ctx := cmd.Context()

	lead, err := env.Store.GetLead(ctx, id)
	if err != nil {
		return eris.Wrapf(err, "get lead %d", id)
	}

	assessment := env.Assessor.AssessLead(ctx, lead)
	if assessment.Error != "" {
		return eris.Errorf("assessment failed: %s", assessment.Error)
	}

	if err := env.Store.SaveAssessment(ctx, lead.ID, assessment); err != nil {
		return eris.Wrapf(err, "save assessment for lead %d", id)
	}

	return printJSON(model.AssessedLead{
		LeadID:      lead.ID,
		CompanyName: lead.CompanyName,
		Assessment:  assessment,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	assessCmd.Flags().Int64Var(&assessLeadID, "lead-id", 0, "assess a single lead by ID")
	assessCmd.Flags().IntVar(&assessLimit, "limit", 0, "maximum number of leads to assess (0 = all)")
	rootCmd.AddCommand(assessCmd)
}
