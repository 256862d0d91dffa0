package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// InitResult describes the schema declared by init.
type InitResult struct {
	Catalog  string   `json:"catalog"`
	DB       string   `json:"db"`
	Created  []string `json:"created"`
	Verified []string `json:"verified"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Declare the catalog's tables in the database",
		Long: `Create every table of the catalog that is missing from the database and
verify the ones already present. Running init again is a no-op.

Examples:
  relcat init --db library.db
  relcat init --db shop.db --catalog bookshop
  relcat init --db obs.db --catalog ./catalogs/astro`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := opts.open(cmd.Context(), cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	result := InitResult{
		Catalog:  sess.catalog.Name,
		DB:       opts.DB,
		Created:  sess.schema.Created,
		Verified: sess.schema.Verified,
	}
	if formatter.Structured() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Catalog %s ready in %s\n", result.Catalog, result.DB)
	for _, t := range result.Created {
		fmt.Fprintf(w, "  created  %s\n", t)
	}
	for _, t := range result.Verified {
		fmt.Fprintf(w, "  verified %s\n", t)
	}
	return nil
}
