// Package schema holds the declarative field-mapping model that drives
// typed ingestion, column renaming, and load-key validation for each
// configured data source.
package schema

import "fmt"

// FieldType is the declared type of an ingested column.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt64   FieldType = "int64"
	TypeFloat64 FieldType = "float64"
)

// ParseFieldType maps a dtype string from configuration to a FieldType.
// Unknown dtypes fall back to string, matching upstream behavior where
// anything unrecognized is ingested as text.
func ParseFieldType(s string) FieldType {
	switch s {
	case "int64":
		return TypeInt64
	case "float64":
		return TypeFloat64
	default:
		return TypeString
	}
}

// FieldMapping binds one field in the source payload to one column in the
// target table, with the type it should be decoded as.
type FieldMapping struct {
	SourceField string    `yaml:"json_field"`
	TargetField string    `yaml:"db_field"`
	Type        FieldType `yaml:"dtype"`
}

// SourceSchema is the ordered field-mapping list for one data source.
// Order is significant: TargetColumns defines the final column order of
// the transformed table.
type SourceSchema []FieldMapping

// FieldTypes returns the declared type for each source field, used to
// build the typed ingestion table.
func (s SourceSchema) FieldTypes() map[string]FieldType {
	types := make(map[string]FieldType, len(s))
	for _, f := range s {
		types[f.SourceField] = f.Type
	}
	return types
}

// ColumnMapping returns the source-field to target-field rename map.
func (s SourceSchema) ColumnMapping() map[string]string {
	mapping := make(map[string]string, len(s))
	for _, f := range s {
		mapping[f.SourceField] = f.TargetField
	}
	return mapping
}

// TargetColumns returns the target column names in declared order.
func (s SourceSchema) TargetColumns() []string {
	cols := make([]string, 0, len(s))
	for _, f := range s {
		cols = append(cols, f.TargetField)
	}
	return cols
}

// SourceColumns returns the source field names in declared order.
func (s SourceSchema) SourceColumns() []string {
	cols := make([]string, 0, len(s))
	for _, f := range s {
		cols = append(cols, f.SourceField)
	}
	return cols
}

// HasTarget reports whether name is one of the schema's target columns.
func (s SourceSchema) HasTarget(name string) bool {
	for _, f := range s {
		if f.TargetField == name {
			return true
		}
	}
	return false
}

// Validate checks that source and target field names are each unique
// within the schema. Returned problems are human-readable and carry the
// duplicated name.
func (s SourceSchema) Validate() []string {
	var problems []string
	seenSource := make(map[string]bool, len(s))
	seenTarget := make(map[string]bool, len(s))
	for _, f := range s {
		if f.SourceField == "" {
			problems = append(problems, "schema entry has empty json_field")
		}
		if f.TargetField == "" {
			problems = append(problems, "schema entry has empty db_field")
		}
		if seenSource[f.SourceField] {
			problems = append(problems, fmt.Sprintf("duplicate json_field %q", f.SourceField))
		}
		if seenTarget[f.TargetField] {
			problems = append(problems, fmt.Sprintf("duplicate db_field %q", f.TargetField))
		}
		seenSource[f.SourceField] = true
		seenTarget[f.TargetField] = true
	}
	return problems
}
