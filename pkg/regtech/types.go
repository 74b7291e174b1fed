// Package regtech implements the REGTECH portal collector: single-POST cookie
// authentication, a multi-strategy date-range sweep, and JSON-first/HTML-
// fallback page parsing. It is the one concrete pkg/collector.Source this
// repository ships.
package regtech

import "time"

// ServiceName is the service_name this collector registers under.
const ServiceName = "REGTECH"

// rawItem is a loosely-typed upstream row, either from the JSON list
// endpoint or synthesized from an HTML table row. Field names mirror the
// portal's multiple historical aliases for the same concept.
type rawItem map[string]any

// listResponse models both response shapes the list endpoint is known to
// return: a bare JSON array, or a {data: [...]} envelope.
type listResponse struct {
	Data []rawItem `json:"data"`
}

// parsedRecord is the collector's internal representation of one upstream
// row after field-extraction, prior to being handed to pkg/normalize.
type parsedRecord struct {
	IPAddress   string
	Country     *string
	Reason      string
	Confidence  int
	DetectionAt *time.Time
	RemovalAt   *time.Time
	RawPayload  map[string]any
}
