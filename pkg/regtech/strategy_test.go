package regtech

import (
	"testing"
	"time"

	"github.com/wisbric/blacklistguard/pkg/collector"
)

func strategyNames(strategies []strategy) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.name
	}
	return names
}

func TestBuildStrategies_NoRangeScheduled(t *testing.T) {
	strategies := buildStrategies(collector.DateRange{}, true)
	got := strategyNames(strategies)
	want := []string{"recent-1-day", "recent-90-day", "all-data"}
	if len(got) != len(want) {
		t.Fatalf("strategies = %v, want %v", got, want)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("strategies[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestBuildStrategies_NoRangeManual(t *testing.T) {
	strategies := buildStrategies(collector.DateRange{}, false)
	got := strategyNames(strategies)
	want := []string{"recent-1-day", "recent-90-day"}
	if len(got) != len(want) {
		t.Fatalf("strategies = %v, want %v (all-data must not appear on a manual, rangeless run)", got, want)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("strategies[%d] = %q, want %q", i, got[i], name)
		}
	}
}

func TestBuildStrategies_UserSpecifiedRangeLeadsRegardlessOfScheduled(t *testing.T) {
	rng := collector.DateRange{Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	for _, scheduled := range []bool{true, false} {
		strategies := buildStrategies(rng, scheduled)
		got := strategyNames(strategies)
		want := []string{"user-specified", "recent-1-day", "recent-90-day"}
		if len(got) != len(want) {
			t.Fatalf("scheduled=%v strategies = %v, want %v", scheduled, got, want)
		}
		for i, name := range want {
			if got[i] != name {
				t.Errorf("scheduled=%v strategies[%d] = %q, want %q", scheduled, i, got[i], name)
			}
		}
	}
}
