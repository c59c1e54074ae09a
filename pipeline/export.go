package pipeline

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/pinharvest/models"
)

// channel is one open CSV output for a single record type. The header
// is written once, locked to the first record's surviving fields; every
// later row is written positionally against its own field set.
//
// Quirk, kept on purpose: because uninformative fields are dropped
// per record, a later record can carry fields the first record lacked
// (or lack fields it had), and those rows end up with a different
// column count than the header. Downstream consumers that index by
// header name must tolerate ragged rows. StrictHeaders opts in to
// padded, header-aligned rows instead.
type channel struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	header []string
	index  map[string]int
	rows   int
}

// exporter owns the per-type output channels. Channels open lazily on
// the first record of each type, so a run that yields only pins writes
// only the pin file.
type exporter struct {
	mu       sync.Mutex
	dir      string
	stamp    string
	strict   bool
	channels map[models.RecordType]*channel
	log      *slog.Logger
}

func newExporter(dir, stamp string, strict bool, log *slog.Logger) *exporter {
	return &exporter{
		dir:      dir,
		stamp:    stamp,
		strict:   strict,
		channels: make(map[models.RecordType]*channel),
		log:      log,
	}
}

// channelFor returns the open channel for a record type, creating the
// backing file on first use.
func (e *exporter) channelFor(t models.RecordType) (*channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.channels[t]; ok {
		return ch, nil
	}
	name := fmt.Sprintf("pinterest_%s_%s.csv", t, e.stamp)
	path := filepath.Join(e.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeExport,
			fmt.Sprintf("create export file %s", path), err)
	}
	ch := &channel{file: f, writer: csv.NewWriter(f)}
	e.channels[t] = ch
	e.log.Info("export channel opened", "type", t, "path", path)
	return ch, nil
}

// write appends one record's row to its type channel.
func (e *exporter) write(rec *models.Record) error {
	ch, err := e.channelFor(rec.Type)
	if err != nil {
		return err
	}
	row := flatten(rec)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.header == nil {
		ch.header = row.Fields
		ch.index = make(map[string]int, len(row.Fields))
		for i, f := range row.Fields {
			ch.index[f] = i
		}
		if err := ch.writer.Write(ch.header); err != nil {
			return models.NewHarvestError(models.ErrCodeExport, "write header", err)
		}
	}

	cells := row.Cells
	if e.strict {
		cells = alignToHeader(ch, row)
	}
	if err := ch.writer.Write(cells); err != nil {
		return models.NewHarvestError(models.ErrCodeExport, "write row", err)
	}
	ch.rows++
	return nil
}

// alignToHeader pads a row out to the channel header, placing each
// cell under its named column and discarding fields the header never
// saw.
func alignToHeader(ch *channel, row Row) []string {
	cells := make([]string, len(ch.header))
	for i, field := range row.Fields {
		pos, ok := ch.index[field]
		if !ok {
			continue
		}
		cells[pos] = row.Cells[i]
	}
	return cells
}

// files lists the export file paths created so far.
func (e *exporter) files() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ch := range e.channels {
		out = append(out, ch.file.Name())
	}
	sort.Strings(out)
	return out
}

// close flushes and closes every open channel, reporting row counts.
func (e *exporter) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for t, ch := range e.channels {
		ch.mu.Lock()
		ch.writer.Flush()
		if err := ch.writer.Error(); err != nil && firstErr == nil {
			firstErr = models.NewHarvestError(models.ErrCodeExport, "flush export", err)
		}
		if err := ch.file.Close(); err != nil && firstErr == nil {
			firstErr = models.NewHarvestError(models.ErrCodeExport, "close export", err)
		}
		e.log.Info("export channel closed", "type", t, "rows", ch.rows, "path", ch.file.Name())
		ch.mu.Unlock()
	}
	return firstErr
}

func runStamp(now time.Time) string {
	return now.Format("20060102_150405")
}
