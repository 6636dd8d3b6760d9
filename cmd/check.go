package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/freebie-watch/internal/catalog"
)

const kindAll = "all"

// newCheckCmd creates the 'check' subcommand, which runs one check and
// prints its report.
func newCheckCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Runs one check and prints the report as JSON",
		Long: `Runs a single listings or promotions check (or both with --kind all),
announcing new items exactly as the scheduled check does, and prints one JSON
report per check.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			kinds := []catalog.CheckKind{catalog.CheckKind(kind)}
			if kind == kindAll {
				kinds = []catalog.CheckKind{catalog.CheckListings, catalog.CheckPromotions}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, k := range kinds {
				report, err := appInstance.Checker().Check(cmd.Context(), k)
				if err != nil {
					return fmt.Errorf("check %q: %w", k, err)
				}
				if report.Error != "" {
					appInstance.GetLogger().Warn("check reported an error", zap.String("kind", string(k)), zap.String("error", report.Error))
				}
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", kindAll, "check to run: listings, promotions or all")
	return cmd
}
