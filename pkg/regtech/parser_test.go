package regtech

import "testing"

func TestParseListResponse_JSONBareArray(t *testing.T) {
	body := []byte(`[{"ipAddr":"8.8.8.8","blockReason":"malware scanning","threatLevel":"high"}]`)
	records := parseListResponse(body, nil)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].IPAddress != "8.8.8.8" {
		t.Errorf("IPAddress = %q, want 8.8.8.8", records[0].IPAddress)
	}
	if records[0].Reason != "malware scanning" {
		t.Errorf("Reason = %q, want upstream text preserved", records[0].Reason)
	}
}

func TestParseListResponse_JSONEnvelope(t *testing.T) {
	body := []byte(`{"data":[{"ip_address":"1.2.3.4"}]}`)
	records := parseListResponse(body, nil)
	if len(records) != 1 || records[0].IPAddress != "1.2.3.4" {
		t.Fatalf("records = %+v, want one record for 1.2.3.4", records)
	}
}

func TestParseListResponse_FallsBackToHTMLOnParseFailure(t *testing.T) {
	var warned bool
	logWarn := func(string, ...any) { warned = true }

	body := []byte(`<html><body><table>
		<tr><th>ip</th><th>country</th><th>reason</th><th>detect</th><th>removal</th></tr>
		<tr><td>9.9.9.9</td><td>US</td><td>scanning activity</td><td>2026-01-01</td><td>2026-06-01</td></tr>
	</table></body></html>`)

	records := parseListResponse(body, logWarn)
	if !warned {
		t.Error("expected logWarn to be called on JSON parse failure")
	}
	if len(records) != 1 || records[0].IPAddress != "9.9.9.9" {
		t.Fatalf("records = %+v, want one record for 9.9.9.9", records)
	}
}

func TestParseListResponse_PrivateIPExcluded(t *testing.T) {
	body := []byte(`[{"ipAddr":"192.168.1.1"}]`)
	records := parseListResponse(body, nil)
	if len(records) != 0 {
		t.Fatalf("records = %+v, want private ip excluded", records)
	}
}

func TestDetermineConfidence_ClampsAndAdjusts(t *testing.T) {
	item := rawItem{"threatLevel": "critical", "verified": true, "reportCount": float64(20)}
	if got := determineConfidence(item); got != 100 {
		t.Errorf("determineConfidence(critical+verified+reports) = %d, want clamped 100", got)
	}

	low := rawItem{"threatLevel": "low"}
	if got := determineConfidence(low); got != 70 {
		t.Errorf("determineConfidence(low) = %d, want 70", got)
	}
}

func TestPickBestReason_PrefersLongerSpecificText(t *testing.T) {
	if got := pickBestReason(defaultReason, "confirmed malware C2"); got != "confirmed malware C2" {
		t.Errorf("pickBestReason default replacement = %q, want upstream text", got)
	}
	if got := pickBestReason("already specific", ""); got != "already specific" {
		t.Errorf("pickBestReason empty candidate = %q, want unchanged", got)
	}
	if got := pickBestReason("short", "a much longer and more specific reason"); got != "a much longer and more specific reason" {
		t.Errorf("pickBestReason longer candidate should win, got %q", got)
	}
}
