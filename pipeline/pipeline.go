// Package pipeline post-processes harvested records: validation,
// duplicate filtering, enrichment, and CSV export. Records flow
// through one Pipeline per run; Process is safe for concurrent use.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/use-agent/pinharvest/models"
)

// Config controls a pipeline run.
type Config struct {
	// OutputDir receives the per-type CSV files.
	OutputDir string
	// StrictHeaders pads every row to the header written by the
	// first record instead of emitting ragged rows.
	StrictHeaders bool
	// NearDupThreshold enables advisory near-duplicate logging when
	// positive: kept records whose content fingerprint lands within
	// this Hamming distance of an earlier record are logged but
	// never dropped. Zero disables the check.
	NearDupThreshold int
}

// Pipeline is the validate -> dedup -> enrich -> export chain.
type Pipeline struct {
	cfg   Config
	state *State
	out   *exporter
	log   *slog.Logger
	runID string
	paths []string
}

// New builds a pipeline. Open must be called before Process.
func New(cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Open prepares the run: fresh dedup state and a lazily-opened CSV
// channel set stamped with the current time.
func (p *Pipeline) Open(runID string) error {
	if p.out != nil {
		return models.NewHarvestError(models.ErrCodeInternal, "pipeline already open", nil)
	}
	if p.cfg.OutputDir != "" {
		if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
			return models.NewHarvestError(models.ErrCodeExport,
				fmt.Sprintf("create output dir %s", p.cfg.OutputDir), err)
		}
	}
	p.runID = runID
	p.paths = nil
	p.state = NewState()
	p.out = newExporter(p.cfg.OutputDir, runStamp(time.Now()), p.cfg.StrictHeaders, p.log)
	p.log.Info("pipeline opened", "run_id", runID, "output_dir", p.cfg.OutputDir)
	return nil
}

// Process runs one record through the chain. It returns the record
// when it survives, (nil, nil) when it was dropped as a duplicate,
// and a non-nil error when the record is invalid or export failed.
// Validation errors carry the offending field; they never stop the
// run, the caller simply moves to the next record.
func (p *Pipeline) Process(rec *models.Record) (*models.Record, error) {
	if p.out == nil {
		return nil, models.NewHarvestError(models.ErrCodeInternal, "pipeline not open", nil)
	}
	if rec == nil {
		return nil, models.NewHarvestError(models.ErrCodeBadRecord, "nil record", nil)
	}
	if err := Validate(rec); err != nil {
		p.log.Warn("record rejected", "run_id", p.runID, "type", rec.Type, "error", err)
		return nil, err
	}
	if !p.state.admit(rec, p.cfg.NearDupThreshold) {
		return nil, nil
	}
	Enrich(rec)
	if err := p.out.write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Close flushes all export channels and logs the run totals.
func (p *Pipeline) Close() error {
	if p.out == nil {
		return nil
	}
	p.paths = p.out.files()
	err := p.out.close()
	stats := p.state.Stats()
	p.log.Info("pipeline closed",
		"run_id", p.runID,
		"kept", stats.Kept,
		"duplicates", stats.Duplicates)
	p.out = nil
	return err
}

// Files lists the CSV files created by the current or just-closed run.
func (p *Pipeline) Files() []string {
	if p.out != nil {
		return p.out.files()
	}
	return p.paths
}

// Stats reports counters for the current or just-closed run.
func (p *Pipeline) Stats() models.RunStats {
	if p.state == nil {
		return models.RunStats{}
	}
	return p.state.Stats()
}

// IsValidationError reports whether a Process error came from record
// validation rather than export machinery, so callers can keep going.
func IsValidationError(err error) bool {
	var he *models.HarvestError
	if !errors.As(err, &he) {
		return false
	}
	return he.Code == models.ErrCodeMissingField || he.Code == models.ErrCodeBadRecord
}
