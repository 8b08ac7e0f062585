package snowflake

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/greenbutton-etl/internal/config"
	"github.com/ignite/greenbutton-etl/internal/frame"
)

// loadBatchSize bounds the number of rows bound into one statement.
const loadBatchSize = 500

// Load upserts the transformed table into the source's target table.
// Rows are merged on the primary key, updating the configured update
// columns; sources without a primary key get plain inserts.
func (c *Client) Load(ctx context.Context, tbl *frame.Table, src config.SourceConfig) error {
	targets := src.Schema.TargetColumns()

	cols := make([]*frame.Column, len(targets))
	for i, name := range targets {
		col, err := tbl.Column(name)
		if err != nil {
			return &LoadError{Source: src.Name, Err: err}
		}
		cols[i] = col
	}

	for start := 0; start < tbl.Height(); start += loadBatchSize {
		end := start + loadBatchSize
		if end > tbl.Height() {
			end = tbl.Height()
		}

		query := c.buildQuery(src, targets, end-start)
		args := make([]interface{}, 0, (end-start)*len(targets))
		for i := start; i < end; i++ {
			for _, col := range cols {
				args = append(args, col.Value(i))
			}
		}

		if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
			return &LoadError{Source: src.Name, Err: err}
		}
	}
	return nil
}

func (c *Client) buildQuery(src config.SourceConfig, targets []string, rows int) string {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(targets)), ",") + ")"
	values := strings.TrimSuffix(strings.Repeat(placeholder+",", rows), ",")
	table := fmt.Sprintf("%s.%s", c.schemaName, src.TableName)

	if len(src.PrimaryKey) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			table, strings.Join(targets, ", "), values)
	}

	var on []string
	for _, k := range src.PrimaryKey {
		on = append(on, fmt.Sprintf("target.%s = src.%s", k, k))
	}

	var insertVals []string
	for _, t := range targets {
		insertVals = append(insertVals, "src."+t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE INTO %s AS target USING (SELECT * FROM (VALUES %s) AS v (%s)) AS src ON %s",
		table, values, strings.Join(targets, ", "), strings.Join(on, " AND "))

	if len(src.UpdateColumns) > 0 {
		var sets []string
		for _, u := range src.UpdateColumns {
			sets = append(sets, fmt.Sprintf("target.%s = src.%s", u, u))
		}
		fmt.Fprintf(&b, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(sets, ", "))
	}

	fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
		strings.Join(targets, ", "), strings.Join(insertVals, ", "))
	return b.String()
}
