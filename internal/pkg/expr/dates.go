package expr

import (
	"strings"
	"time"
)

// DateFormats is the fixed, ordered list of accepted date layouts. Parsing
// tries each in order and the first successful layout wins; an input that is
// ambiguous between two layouts resolves to the earlier one. No locale
// disambiguation is attempted.
var DateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"02.01.2006",
	"20060102",
}

// ParseDate parses a raw string against DateFormats, first match wins.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range DateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
