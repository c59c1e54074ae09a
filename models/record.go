package models

import "fmt"

// RecordType identifies one of the fixed entity kinds the harvester produces.
type RecordType string

const (
	TypePin          RecordType = "pin"
	TypeBoard        RecordType = "board"
	TypeUser         RecordType = "user"
	TypeSearchResult RecordType = "search_result"
	TypeTrend        RecordType = "trend"
)

// RecordTypes lists every supported record type in a stable order.
var RecordTypes = []RecordType{TypePin, TypeBoard, TypeUser, TypeSearchResult, TypeTrend}

// Valid reports whether t is one of the supported record types.
func (t RecordType) Valid() bool {
	switch t {
	case TypePin, TypeBoard, TypeUser, TypeSearchResult, TypeTrend:
		return true
	}
	return false
}

// Record is one harvested entity: a typed bag of extracted field values.
// Values are one of: string, int, float64, bool, []string, or
// map[string]any (nested metadata). A missing key means the field was
// never extracted; an empty value means extraction resolved to the
// field's default.
type Record struct {
	Type   RecordType
	Fields map[string]any
}

// NewRecord creates an empty record of the given type.
func NewRecord(t RecordType) *Record {
	return &Record{Type: t, Fields: make(map[string]any)}
}

// Set stores a field value.
func (r *Record) Set(field string, value any) {
	r.Fields[field] = value
}

// Get returns the raw field value and whether it is present.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// String returns the field as a string, or "" if absent or not a string.
func (r *Record) String(field string) string {
	if v, ok := r.Fields[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns the field as an int. Float values are truncated; anything
// else yields 0.
func (r *Record) Int(field string) int {
	switch v := r.Fields[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Empty reports whether the field is absent or holds its zero/default
// value (empty string, 0, false, empty list, empty map).
func (r *Record) Empty(field string) bool {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	case bool:
		return !val
	case []string:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// Describe returns a short human-readable tag for log lines.
func (r *Record) Describe() string {
	return fmt.Sprintf("%s(%s)", r.Type, IdentityKey(r))
}
