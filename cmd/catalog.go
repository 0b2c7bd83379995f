// apps/go-server/cmd/catalog.go
//
// `tankguess catalog`: list, names and validate.

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robalobadob/tankguess/apps/go-server/internal/catalog"
	"github.com/robalobadob/tankguess/apps/go-server/internal/config"
	"github.com/robalobadob/tankguess/apps/go-server/internal/game"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate item catalogs",
	}
	cmd.AddCommand(newCatalogListCmd(), newCatalogNamesCmd(), newCatalogValidateCmd())
	return cmd
}

// loadCatalog reads the configured catalog of category.
func loadCatalog(category string) (*catalog.Catalog, error) {
	cat, err := game.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	set, err := catalog.Load(catalog.Files{Tanks: cfg.CatalogTanksFile, Maps: cfg.CatalogMapsFile})
	if err != nil {
		return nil, err
	}
	return set.Catalog(cat)
}

func newCatalogListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List item ids with their image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(category)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tIMAGES")
			for _, it := range c.Items() {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", it.ID, it.Name, len(it.Images))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", string(game.CategoryTank), "Catalog (tank or map)")
	return cmd
}

func newCatalogNamesCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Print the autocomplete names in catalog order",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(category)
			if err != nil {
				return err
			}
			for _, n := range c.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", string(game.CategoryTank), "Catalog (tank or map)")
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check catalog files (.yaml, .json, .jsonl, .parquet)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := game.ParseCategory(category)
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range args {
				items, err := catalog.LoadFileFor(path, cat)
				if err == nil {
					var c *catalog.Catalog
					if c, err = catalog.New(cat, items); err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%d items)\n", path, c.Len())
						continue
					}
				}
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalog files invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", string(game.CategoryTank), "Catalog the files belong to")
	return cmd
}
