package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relcat/internal/ir"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/queryir"
)

// NewTopCommand creates the top command.
func NewTopCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		n     int
		order string
	)

	cmd := &cobra.Command{
		Use:   "top <entity> <metric>",
		Short: "Rank the rows of a table by a column",
		Long: `Return the first N rows of a table ordered by a column. Rows with no
value for the column are skipped; ties keep insertion order.

Examples:
  relcat top --catalog bookshop book price --n 5
  relcat top --catalog bookshop book price --order asc --format tsv`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func() (queryir.Query, error) {
				return queryir.TopN{
					Entity: args[0],
					Metric: args[1],
					N:      n,
					Order:  queryir.Order(strings.ToLower(order)),
				}, nil
			})
		},
	}

	cmd.Flags().IntVar(&n, "n", 10, "number of rows")
	cmd.Flags().StringVar(&order, "order", string(queryir.Desc), "sort direction (asc|desc)")

	return cmd
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		project string
		key     string
		kind    string
	)

	cmd := &cobra.Command{
		Use:   "join <left> <right>",
		Short: "Join two tables along a link and project columns",
		Long: `Equi-join two tables along the link connecting them and project plain
columns or aggregates. With aggregates, rows group by the left row.

Projection items are comma separated: a column, side.column, or an
aggregate such as count(*), sum(price) or max(right.price), each with an
optional "as name".

Examples:
  relcat join book book_issue --project "title, count(*) as issues" --kind left
  relcat join book_issue book --project "issue_date, right.title"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func() (queryir.Query, error) {
				items, err := queryir.ParseItems(project)
				if err != nil {
					return nil, err
				}
				return queryir.JoinProjection{
					Left:       args[0],
					Right:      args[1],
					JoinKey:    key,
					Projection: items,
					Kind:       queryir.JoinKind(strings.ToLower(kind)),
				}, nil
			})
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "projection items (comma separated)")
	cmd.Flags().StringVar(&key, "key", "", "link column joining the tables (optional when unambiguous)")
	cmd.Flags().StringVar(&kind, "kind", string(queryir.Inner), "join kind (inner|left)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

// NewGroupCommand creates the group command.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fn      string
		measure string
		having  []string
		rank    string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "group <entity> [group-key]",
		Short: "Aggregate a table grouped by a column or link",
		Long: `Group the rows of a table by a column or link column and aggregate a
measure. Grouping by a link labels each group with the linked row's key
or label. Without a group key every row falls into one group.

The group key and the measure may follow one link as link.column.

Examples:
  relcat group book genre_id --fn count
  relcat group --catalog bookshop book category_id --fn sum --measure price --having "> 10"
  relcat group --catalog bookshop book --fn avg --measure price
  relcat group --catalog restaurant order_dish dish_id --fn count --rank desc --limit 3
  relcat group --catalog restaurant order_dish order_id.table_id --fn sum --measure dish_id.price`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func() (queryir.Query, error) {
				pred, err := queryir.ParseHaving(having...)
				if err != nil {
					return nil, err
				}
				var key string
				if len(args) > 1 {
					key = args[1]
				}
				g := queryir.GroupAggregate{
					Entity:   args[0],
					GroupKey: key,
					Func:     queryir.AggFunc(strings.ToLower(fn)),
					Measure:  measure,
					Having:   pred,
				}
				if rank != "" || limit > 0 {
					order := queryir.Order(strings.ToLower(rank))
					if order == "" {
						order = queryir.Desc
					}
					g.Rank = &queryir.Rank{Order: order, Limit: limit}
				}
				return g, nil
			})
		},
	}

	cmd.Flags().StringVar(&fn, "fn", string(queryir.Count), "aggregate function (count|sum|avg|max)")
	cmd.Flags().StringVar(&measure, "measure", "", "column or link.column to aggregate (optional with count)")
	cmd.Flags().StringArrayVar(&having, "having", nil, `filter on the aggregate value, e.g. ">= 2" (repeatable, all must hold)`)
	cmd.Flags().StringVar(&rank, "rank", "", "order groups by aggregate value (asc|desc)")
	cmd.Flags().IntVar(&limit, "limit", 0, "keep only the first N ranked groups")

	return cmd
}

// NewStaleCommand creates the stale command.
func NewStaleCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		threshold float64
		reference string
	)

	cmd := &cobra.Command{
		Use:   "stale <relationship>",
		Short: "List open relationship rows older than a threshold",
		Long: `List the rows of a relationship whose span has not ended and whose start
lies more than --threshold days before the reference time. The reference
defaults to now.

Examples:
  relcat stale book_issue --threshold 30
  relcat stale book_issue --threshold 14 --reference 2024-03-01`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, cmd, func() (queryir.Query, error) {
				ref := rootOpts.now()
				if reference != "" {
					t, err := ir.ParseTime(reference)
					if err != nil {
						return nil, err
					}
					ref = t.Std()
				}
				return queryir.StaleFilter{
					Relationship:  args[0],
					Reference:     ref,
					ThresholdDays: threshold,
				}, nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 30, "age in days a row must exceed")
	cmd.Flags().StringVar(&reference, "reference", "", "reference time (RFC 3339 or YYYY-MM-DD, default now)")

	return cmd
}

// runQuery builds a query from flags, runs it against the database and
// writes the result. Flag and query errors exit 2.
func runQuery(opts *RootOptions, cmd *cobra.Command, build func() (queryir.Query, error)) error {
	formatter := opts.formatter(cmd)

	q, err := build()
	if err != nil {
		return formatter.Fail(ExitCommandError, "invalid query", err)
	}

	sess, err := opts.openExisting(cmd.Context(), cmd, formatter)
	if err != nil {
		return err
	}
	defer sess.Close()

	engine := query.NewEngine(sess.store, sess.catalog, query.WithLogger(sess.logger))
	res, err := engine.Run(cmd.Context(), q)
	if err != nil {
		return formatter.Fail(ExitCommandError, "query failed", err)
	}
	return formatter.Result(res)
}
