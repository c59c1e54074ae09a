package pipeline

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/use-agent/pinharvest/models"
)

// Row is one export row: field names paired positionally with their
// flattened cell values.
type Row struct {
	Fields []string
	Cells  []string
}

// flatten turns a record into an export row. Fields walk in schema
// order so rows of the same type always agree on relative column
// positions. Fields whose flattened value is uninformative — empty,
// the literal zero, the literal false, or an empty list — are dropped
// from the row entirely, which keeps exports compact at the cost of
// per-row column sets (see the header alignment note in export.go).
func flatten(rec *models.Record) Row {
	schema := models.Schemas[rec.Type]
	row := Row{}
	for _, field := range schema.FieldOrder {
		v, ok := rec.Get(field)
		if !ok {
			continue
		}
		cell := flattenValue(v)
		if uninformative(cell) {
			continue
		}
		row.Fields = append(row.Fields, field)
		row.Cells = append(row.Cells, cell)
	}
	return row
}

// uninformative reports whether a flattened cell carries no signal.
func uninformative(cell string) bool {
	switch cell {
	case "", "0", "false", "[]":
		return true
	}
	return false
}

// flattenValue renders any field value as export text:
// lists join comma-space (skipping empty elements), nested mappings
// serialize to compact JSON, booleans render lowercase, numbers render
// as plain decimal text, everything else is trimmed text.
func flattenValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []string:
		kept := val[:0:0]
		for _, item := range val {
			if item != "" {
				kept = append(kept, item)
			}
		}
		return strings.Join(kept, ", ")
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return strings.TrimSpace(val)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
