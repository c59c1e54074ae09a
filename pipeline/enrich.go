package pipeline

import (
	"math"
	"time"

	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/numfmt"
)

// Enrich computes derived metrics from fields already on the record.
// Total: it always produces a record and never fails — a record with
// zero engagement data simply gets zero-valued derivations.
func Enrich(rec *models.Record) *models.Record {
	if rec.Empty("scraped_at") {
		rec.Set("scraped_at", time.Now().Format(time.RFC3339))
	}

	switch rec.Type {
	case models.TypePin:
		enrichPin(rec)
	case models.TypeUser:
		enrichUser(rec)
	}
	return rec
}

// enrichPin computes the engagement ratio: total engagement over the
// creator's follower count, as a percentage rounded to 2 decimals.
// A zero or absent follower count defines the ratio as 0 instead of
// propagating a division fault.
func enrichPin(rec *models.Record) {
	likes := numfmt.Normalize(rec.Fields["pin_likes"])
	comments := numfmt.Normalize(rec.Fields["pin_comments"])
	repins := numfmt.Normalize(rec.Fields["pin_repins"])

	total := likes + comments + repins
	followers := numfmt.Normalize(rec.Fields["pinner_follower_count"])

	if followers > 0 {
		rate := float64(total) / float64(followers) * 100
		rec.Set("engagement_rate", math.Round(rate*100)/100)
	} else {
		rec.Set("engagement_rate", 0)
	}
}

// enrichUser computes average pins per board, rounded to 1 decimal.
// Unlike the pin ratio, the field is omitted entirely when there are
// no boards to average over.
func enrichUser(rec *models.Record) {
	pins := numfmt.Normalize(rec.Fields["pin_count"])
	boards := numfmt.Normalize(rec.Fields["board_count"])

	if boards > 0 {
		avg := float64(pins) / float64(boards)
		rec.Set("avg_pins_per_board", math.Round(avg*10)/10)
	}
}
