package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pitt-crc/starfish-api-client/filter"
	"github.com/pitt-crc/starfish-api-client/starfish"
)

var (
	queryOpts  starfish.QueryOptions
	filterExpr string
	preset     string
	noWait     bool
	asJSON     bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query VOLUMES_AND_PATHS",
	Short: "Run an asynchronous file query",
	Long: `Submit an asynchronous query, wait for it to finish and print the result rows.

Rows can be narrowed on the client with an expr filter:
  starfish query home:projects --filter 'type == "f" && size > GiB(10)'
  starfish query home:projects --preset stale`,
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeApp,
	RunE:    runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryOpts.Query, "query", "q", "", "Starfish query string")
	queryCmd.Flags().StringVar(&queryOpts.GroupBy, "group-by", "", "group results by these columns")
	queryCmd.Flags().StringVar(&queryOpts.SortBy, "sort-by", "", "sort results by these columns (default is --group-by)")
	queryCmd.Flags().StringVar(&queryOpts.Format, "format", starfish.DefaultQueryFormat, "columns to return")
	queryCmd.Flags().IntVar(&queryOpts.Limit, "limit", 100000, "maximum number of rows")
	queryCmd.Flags().BoolVar(&queryOpts.ForceTagInherit, "force-tag-inherit", false, "force tag inheritance")
	queryCmd.Flags().StringVar(&queryOpts.SizeUnit, "size-unit", "B", "unit for size columns")
	queryCmd.Flags().StringVar(&queryOpts.MountAgent, "mount-agent", "", "restrict the query to one mount agent")
	queryCmd.Flags().BoolVar(&queryOpts.SubmitOnce, "submit-once", false, "do not retry the submit after a server fault")
	queryCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression applied to result rows")
	queryCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a named filter from config")
	queryCmd.Flags().BoolVar(&noWait, "no-wait", false, "print the query ID and exit without waiting")
	queryCmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Compile the filter before submitting so a typo does not cost a query
	rowFilter, err := getRowFilter()
	if err != nil {
		return err
	}

	queryOpts.VolumesAndPaths = args[0]
	q, err := client.SubmitQuery(ctx, queryOpts)
	if err != nil {
		return err
	}

	if noWait {
		fmt.Println(q.ID())
		return nil
	}

	logger.Info().Str("query_id", q.ID()).Msg("Waiting for query to finish")
	result, err := q.Wait(ctx, cfg.Query.PollInterval)
	if err != nil {
		return err
	}

	rows, err := starfish.Rows(result)
	if err != nil {
		return err
	}

	if rowFilter != nil {
		total := len(rows)
		rows, err = rowFilter.Apply(rows)
		if err != nil {
			return err
		}
		logger.Info().
			Str("filter", rowFilter.Expression()).
			Int("matched", len(rows)).
			Int("total", total).
			Msg("Filtered query result")
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}
	return printRows(os.Stdout, rows, strings.Fields(queryOpts.Format))
}

// getRowFilter determines the filter to use. --filter wins over --preset.
func getRowFilter() (*filter.Filter, error) {
	expr := filterExpr
	if expr == "" && preset != "" {
		var ok bool
		if expr, ok = cfg.Filter[preset]; !ok {
			return nil, fmt.Errorf("preset '%s' not found in config", preset)
		}
	}
	if expr == "" {
		return nil, nil
	}

	f, err := filter.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	return f, nil
}

// printRows writes rows as an aligned table. Columns follow the requested
// format first, then any other columns the server returned, sorted.
func printRows(w io.Writer, rows []map[string]any, format []string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No rows matched.")
		return err
	}

	columns := slices.Clone(format)
	var extra []string
	for _, row := range rows {
		for k := range row {
			if !slices.Contains(columns, k) && !slices.Contains(extra, k) {
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)
	columns = slices.DeleteFunc(append(columns, extra...), func(c string) bool {
		for _, row := range rows {
			if _, ok := row[c]; ok {
				return false
			}
		}
		return true
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = formatCell(row[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.2f", val)
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
