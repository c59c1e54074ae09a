package pipeline

import (
	"sync"

	"github.com/use-agent/pinharvest/models"
)

// typeState holds the run-scoped dedup state for one record type.
// The check-and-insert step runs under the mutex: upstream fetch work
// may produce records concurrently, and an unguarded check-then-insert
// would let two concurrent duplicates both pass.
type typeState struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	prints []uint64
	kept   int
	dups   int
}

// State owns all mutable per-run pipeline state: one dedup set per
// record type plus run counters. Created at run start, discarded at run
// end; nothing persists across runs.
type State struct {
	types map[models.RecordType]*typeState
}

// NewState creates empty dedup state for every record type.
func NewState() *State {
	s := &State{types: make(map[models.RecordType]*typeState, len(models.RecordTypes))}
	for _, t := range models.RecordTypes {
		s.types[t] = &typeState{seen: make(map[string]struct{})}
	}
	return s
}

// Stats snapshots the run counters.
func (s *State) Stats() models.RunStats {
	stats := models.RunStats{PerType: make(map[models.RecordType]int)}
	for t, ts := range s.types {
		ts.mu.Lock()
		stats.Kept += ts.kept
		stats.Duplicates += ts.dups
		if ts.kept > 0 {
			stats.PerType[t] = ts.kept
		}
		ts.mu.Unlock()
	}
	return stats
}
