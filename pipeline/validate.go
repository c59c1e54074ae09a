package pipeline

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/numfmt"
)

// reAbsoluteURL is the absolute-URL shape declared URL fields must
// match: scheme, host (domain, localhost, or dotted quad), optional
// port, optional path/query.
var reAbsoluteURL = regexp.MustCompile(`(?i)^https?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// Validate enforces the record type's structural contract and runs
// field-level sanitization in place.
//
// A missing or empty required field rejects the record outright with
// an error naming the field; the caller moves on to the next record.
// Everything else is corrected in place: malformed URLs reset to "",
// declared numeric fields canonicalise through the count normalizer,
// and handle-like identifiers lose their cosmetic markers.
func Validate(rec *models.Record) error {
	schema, ok := models.Schemas[rec.Type]
	if !ok {
		return models.NewHarvestError(models.ErrCodeBadRecord,
			"unknown record type "+string(rec.Type), nil)
	}

	for _, field := range schema.Required {
		if rec.Empty(field) {
			return models.MissingFieldError(rec.Type, field)
		}
	}

	for _, field := range schema.URLFields {
		if v := rec.String(field); v != "" && !reAbsoluteURL.MatchString(v) {
			slog.Warn("resetting malformed URL field",
				"type", rec.Type, "field", field, "value", v)
			rec.Set(field, "")
		}
	}

	for _, field := range schema.Numeric {
		if v, ok := rec.Get(field); ok && !rec.Empty(field) {
			rec.Set(field, numfmt.Normalize(v))
		}
	}

	for _, field := range schema.HandleFields {
		if v := rec.String(field); v != "" {
			rec.Set(field, strings.TrimSpace(strings.ReplaceAll(v, "@", "")))
		}
	}

	return nil
}
