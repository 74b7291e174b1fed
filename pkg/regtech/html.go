package regtech

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// detection/removal/reason header keyword sets, Korean and English, used
// when positional heuristics don't yield a confident match (§4.3).
var (
	detectionKeywords = []string{"탐지", "등록", "reg", "detect", "추가", "add"}
	removalKeywords   = []string{"해제", "삭제", "del", "remove", "만료", "exp"}
	reasonKeywords    = []string{"사유", "reason", "내용", "content", "설명", "desc", "위협", "threat"}
)

const htmlParsePlaceholder = "REGTECH HTML Parse"

// parseHTMLResponse is the fallback parser for pages whose list endpoint
// returned HTML instead of JSON. It never returns an error; malformed rows
// are simply skipped (§9 exception-as-control-flow note).
func parseHTMLResponse(html string) []parsedRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var records []parsedRecord

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() == 0 {
			return
		}

		headers := extractHeaders(rows.First())
		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := cellTexts(row)
			if rec, ok := parseTableRow(cells, headers); ok {
				records = append(records, rec)
			}
		})
	})

	return records
}

func extractHeaders(headerRow *goquery.Selection) []string {
	var headers []string
	headerRow.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, strings.ToLower(strings.TrimSpace(cell.Text())))
	})
	return headers
}

func cellTexts(row *goquery.Selection) []string {
	var cells []string
	row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

// parseTableRow applies the three-tier heuristic: positional extraction
// first (when the row has ≥5 cells: IP/country/reason/detection/removal),
// then header-keyword matching to fill any gaps, then a final positional
// date scan across cells 1-5.
func parseTableRow(cells []string, headers []string) (parsedRecord, bool) {
	ip := findFirstPublicIP(cells)
	if ip == "" {
		return parsedRecord{}, false
	}

	rec := parsedRecord{
		IPAddress:  ip,
		Reason:     htmlParsePlaceholder,
		Confidence: 75,
	}

	if len(cells) >= 5 {
		if reason := cleanPlaceholder(cells[2]); reason != "" {
			rec.Reason = reason
		}
		if t, ok := parseUpstreamDate(cells[3]); ok {
			rec.DetectionAt = t
		}
		if t, ok := parseUpstreamDate(cells[4]); ok {
			rec.RemovalAt = t
		}
	}

	if (rec.DetectionAt == nil || rec.RemovalAt == nil || rec.Reason == htmlParsePlaceholder) && len(headers) > 0 {
		applyHeaderHeuristics(&rec, cells, headers)
	}

	if rec.DetectionAt == nil {
		for i := 1; i < len(cells) && i < 6; i++ {
			if t, ok := parseUpstreamDate(cells[i]); ok {
				rec.DetectionAt = t
				break
			}
		}
	}

	rec.Country = extractCountryInfo(cells)
	rec.RawPayload = map[string]any{
		"row_data": cells,
	}

	if rec.Reason == htmlParsePlaceholder {
		rec.Reason = defaultReason
	}

	return rec, true
}

func applyHeaderHeuristics(rec *parsedRecord, cells, headers []string) {
	for i, cell := range cells {
		if i >= len(headers) {
			continue
		}
		header := headers[i]

		if rec.DetectionAt == nil && containsAny(header, detectionKeywords) {
			if t, ok := parseUpstreamDate(cell); ok {
				rec.DetectionAt = t
			}
		} else if rec.RemovalAt == nil && containsAny(header, removalKeywords) {
			if t, ok := parseUpstreamDate(cell); ok {
				rec.RemovalAt = t
			}
		} else if rec.Reason == htmlParsePlaceholder && containsAny(header, reasonKeywords) {
			if cleaned := cleanPlaceholder(cell); cleaned != "" {
				rec.Reason = cleaned
			}
		}
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func cleanPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", "N/A", htmlParsePlaceholder, defaultReason:
		return ""
	default:
		return s
	}
}

func findFirstPublicIP(cells []string) string {
	for _, c := range cells {
		if isPublicIP(c) {
			return c
		}
	}
	return ""
}

// countryPatterns maps an ISO-2 code to the tokens (English/Korean) that
// identify it in a free-text table cell.
var countryPatterns = map[string][]string{
	"KR": {"KR", "KOREA", "한국", "SOUTH KOREA", "REPUBLIC OF KOREA"},
	"US": {"US", "USA", "UNITED STATES", "미국", "AMERICA"},
	"CN": {"CN", "CHINA", "중국", "CHN"},
	"JP": {"JP", "JAPAN", "일본", "JPN"},
	"RU": {"RU", "RUSSIA", "러시아", "RUSSIAN"},
	"DE": {"DE", "GERMANY", "독일", "GERMAN"},
	"FR": {"FR", "FRANCE", "프랑스", "FRENCH"},
	"GB": {"GB", "UK", "UNITED KINGDOM", "영국", "BRITAIN"},
	"IN": {"IN", "INDIA", "인도", "INDIAN"},
}

func extractCountryInfo(cells []string) *string {
	for _, cell := range cells {
		trimmed := strings.TrimSpace(cell)
		if len(trimmed) < 2 {
			continue
		}
		upper := strings.ToUpper(trimmed)

		for code, patterns := range countryPatterns {
			for _, p := range patterns {
				if strings.Contains(upper, p) {
					code := code
					return &code
				}
			}
		}

		if len(trimmed) == 2 && isAlpha(trimmed) {
			code := upper
			return &code
		}
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
