package extend

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseTimeMark converts "M:S" or "MM:SS" to seconds. Minutes must be a
// non-negative integer; seconds may carry a fraction ("1:02.5") and must be
// below 60.
func ParseTimeMark(s string) (float64, error) {
	text := strings.TrimSpace(s)
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q: want M:S", ErrParse, s)
	}

	if !isDigits(parts[0], false) {
		return 0, fmt.Errorf("%w: %q: bad minutes", ErrParse, s)
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrParse, s, err)
	}

	if !isDigits(parts[1], true) {
		return 0, fmt.Errorf("%w: %q: bad seconds", ErrParse, s)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrParse, s, err)
	}
	if seconds >= 60 {
		return 0, fmt.Errorf("%w: %q: seconds must be below 60", ErrParse, s)
	}

	return float64(minutes)*60 + seconds, nil
}

// isDigits accepts a non-empty run of ASCII digits, optionally with one
// decimal point that has digits on both sides.
func isDigits(s string, allowPoint bool) bool {
	if s == "" {
		return false
	}
	whole, frac, hasPoint := strings.Cut(s, ".")
	if hasPoint && (!allowPoint || frac == "") {
		return false
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return whole != ""
}

// FormatTimeMark renders seconds as "M:SS.mmm".
func FormatTimeMark(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
