package pipeline

import (
	"log/slog"

	"github.com/use-agent/pinharvest/models"
)

// admit decides whether a record is new for this run. The identity key
// check and insert happen atomically under the type's mutex. A
// duplicate is dropped silently at the pipeline level; the warning log
// line is the only trace it existed.
//
// nearDupThreshold, when positive, additionally compares the record's
// content fingerprint against previously admitted records of the same
// type and logs (but never drops) close matches.
func (s *State) admit(rec *models.Record, nearDupThreshold int) bool {
	ts := s.types[rec.Type]
	key := models.IdentityKey(rec)

	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, dup := ts.seen[key]; dup {
		ts.dups++
		slog.Warn("duplicate record dropped", "type", rec.Type, "key", key)
		return false
	}
	ts.seen[key] = struct{}{}
	ts.kept++

	if nearDupThreshold > 0 {
		if fp := contentFingerprint(rec); fp != 0 {
			for _, prev := range ts.prints {
				if hammingDistance(fp, prev) <= nearDupThreshold {
					slog.Warn("near-duplicate content admitted",
						"type", rec.Type, "key", key,
						"distance", hammingDistance(fp, prev))
					break
				}
			}
			ts.prints = append(ts.prints, fp)
		}
	}

	return true
}
