package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrastat/landsig/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id> <out.xlsx>",
	Short: "Export a recorded run to an XLSX workbook",
	Long:  "Re-runs the comparison recorded under the given run ID from its stored parameters and writes the full divergence matrix, reduced vectors, and summary to a workbook. The matrix itself is not persisted, so the sources must still be readable.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("compare"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}

		cmp, err := runComparison(ctx, run.Params)
		if err != nil {
			return err
		}

		withSigs, _ := cmd.Flags().GetBool("signatures")
		if err := export.WriteResult(args[1], cmp.res, cmp.a, cmp.b, export.Options{
			Palette:           cmp.pal,
			IncludeSignatures: withSigs,
		}); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("run_id", run.ID), zap.String("path", args[1]))
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("signatures", false, "include per-tile signature sheets")
	rootCmd.AddCommand(exportCmd)
}
