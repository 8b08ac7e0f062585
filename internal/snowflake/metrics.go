package snowflake

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/greenbutton-etl/internal/etl"
)

// metricsTable receives one row per source per run.
const metricsTable = "ETL_RUNS"

// SaveMetrics persists the finalized run metrics, one row per source.
func (c *Client) SaveMetrics(ctx context.Context, run *etl.RunMetrics) error {
	rows := run.Rows()
	if len(rows) == 0 {
		return nil
	}

	placeholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	values := strings.TrimSuffix(strings.Repeat(placeholder+",", len(rows)), ",")

	query := fmt.Sprintf(`INSERT INTO %s.%s
		(RUN_ID, RUN_START, RUN_END, SOURCE_NAME, SOURCE_START, SOURCE_END,
		 RECORDS_EXTRACTED, RECORDS_UPLOADED, STATUS, ERROR_MSG)
		VALUES %s`, c.schemaName, metricsTable, values)

	args := make([]interface{}, 0, len(rows)*10)
	for _, row := range rows {
		args = append(args,
			row.RunID,
			row.RunStart,
			row.RunEnd,
			row.SourceName,
			row.SourceStart,
			row.SourceEnd,
			row.RecordsExtracted,
			row.RecordsUploaded,
			string(row.Status),
			row.ErrorMsg,
		)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving run metrics: %w", err)
	}
	return nil
}
