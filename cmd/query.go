package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// newListingsCmd creates the 'listings' subcommand, which prints stored
// listings without fetching anything.
func newListingsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Prints stored listings, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), appInstance.Checker().LatestListings(limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of listings to print")
	return cmd
}

// newPromotionsCmd creates the 'promotions' subcommand, which prints the
// stored promotions that have not ended.
func newPromotionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promotions",
		Short: "Prints stored promotions that are still active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), appInstance.Checker().ActivePromotions())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
