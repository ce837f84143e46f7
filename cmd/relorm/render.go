package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/golobby/relorm/qb"
)

var renderFlags struct {
	op      string
	columns []string
	where   []string
	orderBy []string
	limit   int
	offset  int
	lock    bool
}

var renderCmd = &cobra.Command{
	Use:   "render <table>",
	Short: "Render a statement for the configured dialect",
	Long: `Render builds a statement against <table> and prints its SQL and
arguments in the dialect of the configured driver.

Where conditions take the form column=value, or column=null.`,
	Example: `  relorm render posts --driver postgres --where published=1 --order id:desc --limit 10
  relorm render posts --op delete --where id=3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dialect, err := qb.DialectFor(cfg.Driver)
		if err != nil {
			return err
		}
		b, err := buildStatement(dialect, args[0])
		if err != nil {
			return err
		}
		stmt, err := b.Render(qb.Operation(strings.ToUpper(renderFlags.op)))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), stmt.SQL)
		if len(stmt.Args) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "args: %v\n", stmt.Args)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().StringVar(&renderFlags.op, "op", "select", "operation: select, delete")
	renderCmd.Flags().StringSliceVar(&renderFlags.columns, "select", nil, "columns to select")
	renderCmd.Flags().StringArrayVar(&renderFlags.where, "where", nil, "column=value condition, repeatable")
	renderCmd.Flags().StringArrayVar(&renderFlags.orderBy, "order", nil, "column[:asc|desc], repeatable")
	renderCmd.Flags().IntVar(&renderFlags.limit, "limit", -1, "row limit")
	renderCmd.Flags().IntVar(&renderFlags.offset, "offset", 0, "row offset")
	renderCmd.Flags().BoolVar(&renderFlags.lock, "for-update", false, "lock selected rows")
}

func buildStatement(dialect *qb.Dialect, table string) (*qb.Builder, error) {
	b := qb.New(dialect, table).Select(renderFlags.columns...)
	for _, w := range renderFlags.where {
		col, value, ok := strings.Cut(w, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid condition %q, expected column=value", w)
		}
		if strings.EqualFold(value, "null") {
			b.WhereNull(col)
			continue
		}
		b.Where(col, value)
	}
	for _, o := range renderFlags.orderBy {
		col, dir, ok := strings.Cut(o, ":")
		if !ok {
			dir = "asc"
		}
		b.OrderBy(col, dir)
	}
	if renderFlags.limit >= 0 {
		b.Limit(renderFlags.limit)
	}
	if renderFlags.offset > 0 {
		b.Offset(renderFlags.offset)
	}
	if renderFlags.lock {
		b.LockForUpdate()
	}
	return b, nil
}
