package regtech

import (
	"strings"
	"time"
)

// dateLayouts lists every layout the upstream portal has been observed to
// emit, tried in order; the first successful parse wins (§4.3).
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006.01.02",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"20060102",
	"01/02/2006",
	"01-02-2006",
}

// parseUpstreamDate tries every known layout and returns the first match.
// Never errors outward — an unparseable value yields (nil, false) so callers
// can skip the field without failing the row.
func parseUpstreamDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	return nil, false
}
