package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"karriere-harvester/internal/analysis"
	"karriere-harvester/internal/export"
)

var analyzeLocale string

func init() {
	analyzeCmd.Flags().StringVar(&analyzeLocale, "locale", "en", "Table language (en or de)")
	rootCmd.AddCommand(analyzeCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <export.csv|export.xlsx>",
	Short: "Tallies employment types in an exported file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := export.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		counts := analysis.Tally(records)
		if len(counts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no employment types found")
			return nil
		}
		analysis.Render(cmd.OutOrStdout(), counts, analyzeLocale)
		return nil
	},
}
