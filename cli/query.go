package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryLimit int
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a SQL query against the datasets",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 100, "Maximum rows to return")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Emit rows as JSON instead of a table")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	client := newAPIClient(cfg, logger)

	result, err := client.Query(context.Background(), args[0], queryLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	rows := make([][]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = formatQueryValue(row[col])
			if len(cells[i]) > widths[i] {
				widths[i] = len(cells[i])
			}
		}
		rows = append(rows, cells)
	}

	var sb strings.Builder
	for i, col := range result.Columns {
		fmt.Fprintf(&sb, "%-*s  ", widths[i], col)
	}
	sb.WriteString("\n")
	for i := range result.Columns {
		sb.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	sb.WriteString("\n")
	for _, cells := range rows {
		for i, cell := range cells {
			fmt.Fprintf(&sb, "%-*s  ", widths[i], cell)
		}
		sb.WriteString("\n")
	}
	fmt.Print(sb.String())
	fmt.Printf("%d rows (%.1fms)\n", result.RowCount, result.ExecutionTimeMS)
	return nil
}
