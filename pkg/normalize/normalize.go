// Package normalize implements the pure transform-and-filter stage (C4)
// between collection and persistence: IP validation, removal-date
// expiry, confidence mapping, is_active derivation, country
// normalization, and reason preservation.
package normalize

import (
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/wisbric/blacklistguard/pkg/collector"
)

// RejectReason tags why a record never reached the UPSERT stage.
type RejectReason string

const (
	RejectNone              RejectReason = ""
	RejectPrivateOrInvalid  RejectReason = "excluded_private_or_invalid"
	RejectExpired           RejectReason = "expired"
)

// Normalized is a record ready for UPSERT, carrying exactly the columns C5
// needs.
type Normalized struct {
	IPAddress     string
	Source        string
	Country       *string
	Reason        string
	Confidence    int
	DetectionDate *time.Time
	RemovalDate   *time.Time
	IsActive      bool
	RawPayload    json.RawMessage
}

// qualitativeConfidence maps upstream severity labels to the fixed scale
// required by §3-I3.
var qualitativeConfidence = map[string]int{
	"critical": 95,
	"high":     90,
	"medium":   50,
	"low":      10,
	"unknown":  5,
}

// Normalize runs one collector.Record through the full C4 pipeline. now is
// injected so callers (and tests) control what "today" means for the
// removal-date filter and is_active derivation.
func Normalize(rec collector.Record, source string, now time.Time) (Normalized, RejectReason) {
	ip := strings.TrimSpace(rec.IPAddress)
	if !isPublicIP(ip) {
		return Normalized{}, RejectPrivateOrInvalid
	}

	if rec.RemovalAt != nil && rec.RemovalAt.Before(truncateToDate(now)) {
		return Normalized{}, RejectExpired
	}

	out := Normalized{
		IPAddress:     ip,
		Source:        source,
		Country:       normalizeCountry(rec.Country),
		Reason:        preserveReason(rec.Reason),
		Confidence:    mapConfidence(rec.Confidence),
		DetectionDate: rec.DetectionAt,
		RemovalDate:   rec.RemovalAt,
	}
	out.IsActive = deriveIsActive(out.RemovalDate, now)
	out.RawPayload = buildRawPayload(rec, now)

	return out, RejectNone
}

// mapConfidence clamps an explicit numeric confidence into [0,100], or falls
// back to 50 (treated as "medium") when the source expressed no opinion.
func mapConfidence(confidence *int) int {
	if confidence == nil {
		return qualitativeConfidence["medium"]
	}
	c := *confidence
	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	return c
}

// MapQualitativeConfidence maps a free-text severity label (as used by the
// agent ingest API's severity field) to the fixed numeric scale.
func MapQualitativeConfidence(label string) int {
	if v, ok := qualitativeConfidence[strings.ToLower(strings.TrimSpace(label))]; ok {
		return v
	}
	return qualitativeConfidence["medium"]
}

// deriveIsActive implements §3-I1: active unless removal_date is set and in the past.
func deriveIsActive(removalDate *time.Time, now time.Time) bool {
	if removalDate == nil {
		return true
	}
	return !removalDate.Before(truncateToDate(now))
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func preserveReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "unspecified"
	}
	return reason
}

// isoCountryAliases maps common English/Korean/ISO spellings to ISO-2.
var isoCountryAliases = map[string]string{
	"KOREA": "KR", "한국": "KR", "SOUTH KOREA": "KR", "KR": "KR",
	"UNITED STATES": "US", "USA": "US", "US": "US", "미국": "US",
	"CHINA": "CN", "중국": "CN", "CN": "CN",
	"JAPAN": "JP", "일본": "JP", "JP": "JP",
	"RUSSIA": "RU", "러시아": "RU", "RU": "RU",
}

func normalizeCountry(country *string) *string {
	if country == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*country)
	if trimmed == "" {
		return nil
	}

	if code, ok := isoCountryAliases[strings.ToUpper(trimmed)]; ok {
		return &code
	}

	if len(trimmed) == 2 && isAlpha(trimmed) {
		code := strings.ToUpper(trimmed)
		return &code
	}

	if isAlpha(trimmed) && len(trimmed) >= 2 {
		code := strings.ToUpper(trimmed[:2])
		return &code
	}

	return nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}

// buildRawPayload serializes rec.RawPayload verbatim when present; otherwise
// synthesizes one from the parsed fields plus a collection timestamp (§4.4-5).
func buildRawPayload(rec collector.Record, now time.Time) json.RawMessage {
	if rec.RawPayload != nil {
		if b, err := json.Marshal(rec.RawPayload); err == nil {
			return b
		}
	}

	synthetic := map[string]any{
		"ip_address":           rec.IPAddress,
		"reason":               rec.Reason,
		"detection_timestamp":  rec.DetectionAt,
		"removal_timestamp":    rec.RemovalAt,
		"collection_timestamp": now.UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(synthetic)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// isPublicIP implements §3-I2/§4.4-1: must parse as an IP literal and must
// not be private, loopback, link-local, multicast, or reserved/unspecified.
func isPublicIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return !(ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}
