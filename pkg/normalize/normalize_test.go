package normalize

import (
	"testing"
	"time"

	"github.com/wisbric/blacklistguard/pkg/collector"
)

func TestNormalizeRejectsPrivateIP(t *testing.T) {
	rec := collector.Record{IPAddress: "192.168.0.1"}
	_, reason := Normalize(rec, "REGTECH", time.Now())
	if reason != RejectPrivateOrInvalid {
		t.Fatalf("reason = %q, want %q", reason, RejectPrivateOrInvalid)
	}
}

func TestNormalizeRejectsExpired(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	rec := collector.Record{IPAddress: "8.8.8.8", RemovalAt: &yesterday}

	_, reason := Normalize(rec, "REGTECH", now)
	if reason != RejectExpired {
		t.Fatalf("reason = %q, want %q", reason, RejectExpired)
	}
}

func TestNormalizeDerivesIsActive(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 5)

	rec := collector.Record{IPAddress: "8.8.8.8", RemovalAt: &future}
	out, reason := Normalize(rec, "REGTECH", now)
	if reason != RejectNone {
		t.Fatalf("unexpected rejection: %q", reason)
	}
	if !out.IsActive {
		t.Error("expected is_active=true for future removal date")
	}

	rec2 := collector.Record{IPAddress: "8.8.4.4"}
	out2, _ := Normalize(rec2, "REGTECH", now)
	if !out2.IsActive {
		t.Error("expected is_active=true when removal date is nil")
	}
}

func TestMapConfidenceClampsAndDefaults(t *testing.T) {
	over := 150
	if got := mapConfidence(&over); got != 100 {
		t.Errorf("clamp high = %d, want 100", got)
	}
	under := -5
	if got := mapConfidence(&under); got != 0 {
		t.Errorf("clamp low = %d, want 0", got)
	}
	if got := mapConfidence(nil); got != 50 {
		t.Errorf("default = %d, want 50", got)
	}
}

func TestMapQualitativeConfidence(t *testing.T) {
	tests := map[string]int{
		"critical": 95,
		"high":     90,
		"medium":   50,
		"low":      10,
		"unknown":  5,
		"bogus":    50,
	}
	for label, want := range tests {
		if got := MapQualitativeConfidence(label); got != want {
			t.Errorf("MapQualitativeConfidence(%q) = %d, want %d", label, got, want)
		}
	}
}

func TestNormalizeCountryAliases(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Korea", "KR"},
		{"한국", "KR"},
		{"KR", "KR"},
		{"usa", "US"},
	}
	for _, tt := range tests {
		got := normalizeCountry(&tt.in)
		if got == nil || *got != tt.want {
			t.Errorf("normalizeCountry(%q) = %v, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupFirstOccurrenceWins(t *testing.T) {
	records := []Normalized{
		{IPAddress: "1.1.1.1", Reason: "first"},
		{IPAddress: "1.1.1.1", Reason: "second"},
		{IPAddress: "2.2.2.2", Reason: "only"},
	}
	out := Dedup(records, nil)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Reason != "first" {
		t.Errorf("first occurrence should win, got %q", out[0].Reason)
	}
}
