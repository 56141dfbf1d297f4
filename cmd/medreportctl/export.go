package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/medimage2report/internal/export"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write the latest report of every owner document to an XLSX workbook",
	Example: `  medreportctl export --owner session-42 -o reports.xlsx`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		outPath, _ := cmd.Flags().GetString("output")

		r, err := openRepos(cmd.Context())
		if err != nil {
			return err
		}
		defer r.Close()

		b, err := export.NewService(r.docs, r.reports, logger).ExportReportsXLSX(cmd.Context(), owner)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", outPath, len(b))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("owner", "cli", "Owner/session reference")
	exportCmd.Flags().StringP("output", "o", "reports.xlsx", "Output file path")
	rootCmd.AddCommand(exportCmd)
}
