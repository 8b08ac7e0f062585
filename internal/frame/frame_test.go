package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/greenbutton-etl/internal/schema"
)

func str(s string) *string { return &s }

func testSchema() schema.SourceSchema {
	return schema.SourceSchema{
		{SourceField: "usage_point", TargetField: "usage_point_id", Type: schema.TypeString},
		{SourceField: "start", TargetField: "interval_start", Type: schema.TypeInt64},
		{SourceField: "value", TargetField: "usage_value", Type: schema.TypeFloat64},
	}
}

func TestBuildTypedDecode(t *testing.T) {
	rows := []map[string]*string{
		{"usage_point": str("42"), "start": str("1700000000"), "value": str("1.25")},
		{"usage_point": str("42"), "start": str("1700000900")}, // value missing
	}

	tbl, err := Build(rows, testSchema())
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.Height())
	assert.Equal(t, []string{"usage_point", "start", "value"}, tbl.ColumnNames())

	start, err := tbl.Column("start")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), start.Int64(0))

	value, err := tbl.Column("value")
	require.NoError(t, err)
	assert.Equal(t, 1.25, value.Float64(0))
	assert.True(t, value.IsNull(1))
	assert.Equal(t, 1, value.NullCount())
}

func TestBuildDecodeFailure(t *testing.T) {
	rows := []map[string]*string{
		{"start": str("not-a-number")},
	}
	_, err := Build(rows, testSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"start"`)
	assert.Contains(t, err.Error(), "not-a-number")
}

func TestBuildDropsUnknownKeys(t *testing.T) {
	rows := []map[string]*string{
		{"usage_point": str("7"), "start": str("1"), "value": str("2"), "stray": str("x")},
	}
	tbl, err := Build(rows, testSchema())
	require.NoError(t, err)
	_, err = tbl.Column("stray")
	assert.Error(t, err)
}

func TestSetColumnReplacesInPlace(t *testing.T) {
	tbl, err := Build([]map[string]*string{
		{"usage_point": str("7"), "start": str("1700000000"), "value": str("2")},
	}, testSchema())
	require.NoError(t, err)

	converted := NewColumn("start", schema.TypeString)
	converted.AppendString("2023-11-14 14:13:20")
	require.NoError(t, tbl.SetColumn("start", converted))

	// Order preserved, type changed
	assert.Equal(t, []string{"usage_point", "start", "value"}, tbl.ColumnNames())
	col, err := tbl.Column("start")
	require.NoError(t, err)
	assert.Equal(t, schema.TypeString, col.Type)
	assert.Equal(t, "2023-11-14 14:13:20", col.String(0))
}

func TestSetColumnLengthMismatch(t *testing.T) {
	tbl, err := Build([]map[string]*string{
		{"usage_point": str("7"), "start": str("1"), "value": str("2")},
	}, testSchema())
	require.NoError(t, err)

	short := NewColumn("start", schema.TypeString)
	assert.Error(t, tbl.SetColumn("start", short))
}

func TestRenameAndSelect(t *testing.T) {
	sch := testSchema()
	tbl, err := Build([]map[string]*string{
		{"usage_point": str("42"), "start": str("1700000000"), "value": str("1.5")},
	}, sch)
	require.NoError(t, err)

	out, err := tbl.RenameAndSelect(sch.ColumnMapping(), sch.TargetColumns())
	require.NoError(t, err)
	assert.Equal(t, []string{"usage_point_id", "interval_start", "usage_value"}, out.ColumnNames())

	col, err := out.Column("usage_point_id")
	require.NoError(t, err)
	assert.Equal(t, "42", col.String(0))
}

func TestRenameAndSelectMissingTarget(t *testing.T) {
	sch := testSchema()
	tbl, err := Build(nil, sch)
	require.NoError(t, err)

	_, err = tbl.RenameAndSelect(sch.ColumnMapping(), []string{"usage_point_id", "absent"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"absent"`)
}

func TestColumnValue(t *testing.T) {
	tbl, err := Build([]map[string]*string{
		{"usage_point": str("42"), "start": str("9"), "value": nil},
	}, testSchema())
	require.NoError(t, err)

	up, _ := tbl.Column("usage_point")
	start, _ := tbl.Column("start")
	value, _ := tbl.Column("value")

	assert.Equal(t, "42", up.Value(0))
	assert.Equal(t, int64(9), start.Value(0))
	assert.Nil(t, value.Value(0))
}
