package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/querysql"
	"github.com/roach88/relcat/internal/report"
)

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [table]",
		Short: "Print every row of a table",
		Long: `Print every row of one table in id order. Without a table, list the
catalog's tables with their row counts.

Examples:
  relcat dump
  relcat dump book_issue --format tsv`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runDump(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	sess, err := opts.openExisting(cmd.Context(), cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	if len(args) == 0 {
		res, err := tableCounts(cmd, sess)
		if err != nil {
			return formatter.Fail(ExitCommandError, "failed to count rows", err)
		}
		return formatter.Result(res)
	}

	table, err := sess.catalog.Lookup(args[0])
	if err != nil {
		return formatter.Fail(ExitCommandError, "unknown table", err)
	}
	rows, err := sess.store.ReadTable(cmd.Context(), table)
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to read table", err)
	}
	return formatter.Result(report.FromTable(rows))
}

// tableCounts lists the catalog's tables in declaration order.
func tableCounts(cmd *cobra.Command, sess *session) (*query.Result, error) {
	res := &query.Result{Columns: []querysql.Column{
		{Name: "table", Type: catalog.TypeText},
		{Name: "kind", Type: catalog.TypeText},
		{Name: "rows", Type: catalog.TypeInt},
	}}
	for i := range sess.catalog.Tables {
		t := &sess.catalog.Tables[i]
		n, err := sess.store.Count(cmd.Context(), t)
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, query.Row{ir.String(t.Name), ir.String(string(t.Kind)), ir.Int(n)})
	}
	return res, nil
}
