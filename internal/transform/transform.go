// Package transform normalizes an ingested table into its load-ready
// form: local-time interval timestamps, target column names and order,
// and fully populated primary-key columns.
package transform

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ignite/greenbutton-etl/internal/config"
	"github.com/ignite/greenbutton-etl/internal/frame"
	"github.com/ignite/greenbutton-etl/internal/pkg/logger"
	"github.com/ignite/greenbutton-etl/internal/schema"
)

// startField is the source-side column carrying epoch seconds. The
// conversion runs before renaming, so it addresses the source name.
const startField = "start"

// targetZone is the civil timezone interval timestamps are rendered in.
const targetZone = "America/Los_Angeles"

const timeLayout = "2006-01-02 15:04:05"

// Error wraps any transform failure with the owning source's name.
// Fatal to that source only.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] transformation failed: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Apply transforms the ingested table per the source configuration:
// epoch start times become zone-local formatted strings, columns are
// renamed and projected to the target list, and every primary-key
// column is checked for completeness.
func Apply(tbl *frame.Table, src config.SourceConfig) (*frame.Table, error) {
	if err := convertStartColumn(tbl); err != nil {
		return nil, &Error{Source: src.Name, Err: err}
	}

	out, err := tbl.RenameAndSelect(src.Schema.ColumnMapping(), src.Schema.TargetColumns())
	if err != nil {
		return nil, &Error{Source: src.Name, Err: err}
	}

	for _, col := range src.PrimaryKey {
		nulls, err := out.NullCount(col)
		if err != nil {
			return nil, &Error{Source: src.Name, Err: err}
		}
		if nulls > 0 {
			return nil, &Error{
				Source: src.Name,
				Err:    fmt.Errorf("primary key column %q contains %d missing values", col, nulls),
			}
		}
	}

	logger.Info("transformed rows", "source", src.Name, "rows", out.Height())
	return out, nil
}

// convertStartColumn reinterprets the start column as epoch seconds and
// replaces it with a formatted local-time string column. Nulls stay
// null.
func convertStartColumn(tbl *frame.Table) error {
	col, err := tbl.Column(startField)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(targetZone)
	if err != nil {
		return fmt.Errorf("loading timezone %s: %w", targetZone, err)
	}

	converted := frame.NewColumn(startField, schema.TypeString)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			converted.AppendNull()
			continue
		}
		epoch, err := epochAt(col, i)
		if err != nil {
			return err
		}
		converted.AppendString(time.Unix(epoch, 0).In(loc).Format(timeLayout))
	}

	return tbl.SetColumn(startField, converted)
}

func epochAt(col *frame.Column, i int) (int64, error) {
	switch col.Type {
	case schema.TypeInt64:
		return col.Int64(i), nil
	case schema.TypeFloat64:
		return int64(col.Float64(i)), nil
	default:
		v, err := strconv.ParseInt(col.String(i), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %q: cannot interpret %q as epoch seconds", startField, col.String(i))
		}
		return v, nil
	}
}
