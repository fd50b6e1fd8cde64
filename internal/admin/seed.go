package admin

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/wastebank/internal/catalog"
	"github.com/mmeshcher/wastebank/internal/repository"
)

type seedOptions struct {
	file   string
	dryRun bool
}

func newSeedCommand(opts *RootOptions) *cobra.Command {
	seedOpts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load waste types and level tiers into empty tables",
		Long: "Loads reference data from a YAML file (or the built-in set) into the wastes and levels tables.\n" +
			"A table that already has rows is left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadSeed(seedOpts.file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if seedOpts.dryRun {
				fmt.Fprintf(out, "%d waste types, %d levels\n", len(data.Wastes), len(data.Levels))
				for _, t := range data.Levels {
					fmt.Fprintf(out, "  %-14s %d\n", t.Name, t.RequiredPoints)
				}
				return nil
			}

			if opts.DatabaseURI == "" {
				return errNoDatabase
			}
			store, err := opts.Open(cmd.Context(), opts.DatabaseURI)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			report, err := store.Seed(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "inserted %d waste types, %d levels\n", report.Wastes, report.Levels)

			if cache := opts.Cache(opts.RedisAddr); cache != nil && (report.Wastes > 0 || report.Levels > 0) {
				if err := catalog.New(nil, cache, 0, nil).Invalidate(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&seedOpts.file, "file", "f", "", "YAML file with reference data (built-in set if empty)")
	cmd.Flags().BoolVar(&seedOpts.dryRun, "dry-run", false, "validate and print the data without touching the database")

	return cmd
}

func loadSeed(path string) (repository.SeedData, error) {
	if path == "" {
		return repository.DefaultSeed()
	}
	f, err := os.Open(path)
	if err != nil {
		return repository.SeedData{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return repository.LoadSeed(f)
}
