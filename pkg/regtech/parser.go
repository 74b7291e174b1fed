package regtech

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"
)

// parseListResponse attempts a JSON decode first (accepting either a bare
// array or a {data:[...]} envelope); on failure it falls back to HTML table
// parsing (§4.3). Never returns an error — malformed pages yield an empty slice.
func parseListResponse(body []byte, logWarn func(string, ...any)) []parsedRecord {
	if items, ok := tryParseJSON(body); ok {
		return processItems(items)
	}

	if logWarn != nil {
		logWarn("list response was not JSON, falling back to HTML parse")
	}
	return parseHTMLResponse(string(body))
}

func tryParseJSON(body []byte) ([]rawItem, bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, false
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []rawItem
		if err := json.Unmarshal(body, &items); err == nil {
			return items, true
		}
		return nil, false
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data, true
	}
	return nil, false
}

// field alias lists, ordered by preference, mirroring the portal's several
// historical field-naming schemes.
var (
	ipFields        = []string{"ipAddr", "ip_address", "ip", "IP", "target_ip"}
	detectionFields = []string{"regDt", "detectionDate", "reg_dt", "detect_dt", "created_dt"}
	removalFields   = []string{"delDt", "removalDate", "del_dt", "remove_dt", "end_dt"}
	reasonFields    = []string{"blockReason", "reason", "block_reason", "description", "content"}
)

const defaultReason = "REGTECH Blacklist"

func processItems(items []rawItem) []parsedRecord {
	out := make([]parsedRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := processItem(item); ok {
			out = append(out, rec)
		}
	}
	return out
}

// processItem never panics; a malformed item yields (zero, false) so callers
// skip the row rather than aborting the page (§4.3, §9 exception-as-control-flow note).
func processItem(item rawItem) (parsedRecord, bool) {
	ip := firstStringField(item, ipFields)
	if ip == "" || !isPublicIP(ip) {
		return parsedRecord{}, false
	}

	detectionStr := firstStringField(item, detectionFields)
	removalStr := firstStringField(item, removalFields)

	rec := parsedRecord{
		IPAddress:  ip,
		Reason:     defaultReason,
		Confidence: determineConfidence(item),
		RawPayload: item,
	}

	if t, ok := parseUpstreamDate(detectionStr); ok {
		rec.DetectionAt = t
	}
	if t, ok := parseUpstreamDate(removalStr); ok {
		rec.RemovalAt = t
	}

	if reason := firstStringField(item, reasonFields); reason != "" {
		rec.Reason = pickBestReason(rec.Reason, reason)
	}

	if country, ok := item["country"]; ok {
		if s, ok := country.(string); ok && s != "" {
			rec.Country = &s
		}
	} else if country, ok := item["countryCode"]; ok {
		if s, ok := country.(string); ok && s != "" {
			rec.Country = &s
		}
	}

	return rec, true
}

// pickBestReason prefers longer, more specific text over the generic default.
func pickBestReason(current, candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return current
	}
	if current == defaultReason || len(candidate) > len(current) {
		return candidate
	}
	return current
}

func firstStringField(item rawItem, fields []string) string {
	for _, f := range fields {
		if v, ok := item[f]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// determineConfidence maps a threat-level hint to a base REGTECH confidence,
// adjusted for verification/report-count signals, clamped to [10,100].
func determineConfidence(item rawItem) int {
	base := 80
	adjustments := map[string]int{"critical": 15, "high": 10, "medium": 0, "low": -10}

	level := "medium"
	if v, ok := item["threatLevel"]; ok {
		if s := stringify(v); s != "" {
			level = strings.ToLower(s)
		}
	}
	confidence := base + adjustments[level]

	if v, ok := item["verified"]; ok {
		if b, ok := v.(bool); ok && b {
			confidence += 5
		}
	}
	if v, ok := item["reportCount"]; ok {
		if n, ok := v.(float64); ok && n > 10 {
			confidence += 5
		}
	}

	if confidence < 10 {
		confidence = 10
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// isPublicIP reports whether s parses as an IP literal and is not private,
// loopback, link-local, or multicast (§4.4-1, mirrored here so the parser
// can short-circuit garbage rows before they ever reach the normalizer).
func isPublicIP(s string) bool {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return false
	}
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified())
}
