package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/report"
)

func newCatalogCmd() *cobra.Command {
	var (
		asJSON bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the philosophy catalog and report broken rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			cat := a.engine.Catalog()
			issues := catalog.Lint(cat)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(cat); err != nil {
					return err
				}
			} else if err := report.Write(out, report.CatalogMarkdown(cat, issues), styled()); err != nil {
				return err
			}

			if strict && len(issues) > 0 {
				return fmt.Errorf("catalog has %d broken rules", len(issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any rule does not parse")
	return cmd
}
