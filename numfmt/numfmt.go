// Package numfmt converts human-formatted magnitude strings ("12.3K",
// "1,024 followers") into plain integers. It is total: any input that
// cannot be interpreted yields 0 rather than an error, because count
// extraction must never take down a harvest run.
package numfmt

import (
	"strconv"
	"strings"
)

// suffix multipliers, matched case-insensitively on the last character.
const (
	thousand = 1_000
	million  = 1_000_000
	billion  = 1_000_000_000
)

// Normalize converts v to a non-negative integer count.
//
// Numeric input passes through (floats truncate toward zero). Textual
// input is trimmed, stripped of thousands separators, and interpreted
// with an optional trailing K/M/B suffix applied to its numeric prefix.
// Text with no suffix parses as a real number; if that fails, the first
// maximal run of decimal digits is used. Empty or "N/A" input, and any
// residual parse failure, yield 0.
func Normalize(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return clamp(n)
	case int64:
		return clamp(int(n))
	case float64:
		return clamp(int(n))
	case string:
		return normalizeText(n)
	}
	return 0
}

func normalizeText(text string) int {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "N/A") {
		return 0
	}
	text = strings.ReplaceAll(text, ",", "")

	var mult int
	switch {
	case hasSuffix(text, 'k'):
		mult = thousand
	case hasSuffix(text, 'm'):
		mult = million
	case hasSuffix(text, 'b'):
		mult = billion
	}

	if mult > 0 {
		prefix, err := strconv.ParseFloat(text[:len(text)-1], 64)
		if err != nil {
			return 0
		}
		return clamp(int(prefix * float64(mult)))
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return clamp(int(f))
	}

	// Noisy text like "1234 saves": take the first digit run.
	if run := firstDigitRun(text); run != "" {
		if n, err := strconv.Atoi(run); err == nil {
			return n
		}
	}
	return 0
}

func hasSuffix(s string, c byte) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return last == c || last == c-'a'+'A'
}

// firstDigitRun returns the first maximal run of decimal digits in s.
func firstDigitRun(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
