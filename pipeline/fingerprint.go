package pipeline

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"github.com/use-agent/pinharvest/models"
)

// Near-duplicate detection: exact-key dedup misses the same pin
// re-listed under a fresh ID, so kept records also carry a 64-bit
// SimHash of their human-readable content. A close fingerprint is only
// ever advisory — logged, never dropped.

// titleFields and descFields name the content-bearing fields per
// record type that feed the fingerprint.
var (
	titleFields = []string{"title", "board_name", "full_name", "result_title", "trend_name"}
	descFields  = []string{"description", "bio", "result_description"}
)

// contentFingerprint computes the SimHash of a record's title-like and
// description-like text. Returns 0 when the record has no such content.
func contentFingerprint(rec *models.Record) uint64 {
	var parts []string
	for _, f := range titleFields {
		if v := rec.String(f); v != "" {
			parts = append(parts, v)
		}
	}
	for _, f := range descFields {
		if v := rec.String(f); v != "" {
			parts = append(parts, v)
		}
	}
	return simhash(strings.Join(parts, " "))
}

// simhash computes a 64-bit SimHash over word-level FNV-64a token
// hashes with bit-vector accumulation.
func simhash(text string) uint64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	for _, word := range words {
		h := fnv.New64a()
		h.Write([]byte(strings.ToLower(word)))
		hash := h.Sum64()
		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// hammingDistance counts differing bits between two fingerprints.
func hammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
