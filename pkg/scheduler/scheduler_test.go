package scheduler

import (
	"testing"
	"time"
)

func TestDurationUntilNextToday(t *testing.T) {
	now := time.Date(2026, 1, 10, 1, 0, 0, 0, time.UTC)
	d := durationUntilNext("02:00", now)
	if d != time.Hour {
		t.Errorf("duration = %v, want 1h", d)
	}
}

func TestDurationUntilNextTomorrow(t *testing.T) {
	now := time.Date(2026, 1, 10, 3, 0, 0, 0, time.UTC)
	d := durationUntilNext("02:00", now)
	want := 23 * time.Hour
	if d != want {
		t.Errorf("duration = %v, want %v", d, want)
	}
}

func TestCapAndFloorDuration(t *testing.T) {
	if got := capDuration(4000*time.Second, AdaptiveCeiling); got != AdaptiveCeiling {
		t.Errorf("capDuration = %v, want %v", got, AdaptiveCeiling)
	}
	if got := floorDuration(100*time.Second, AdaptiveFloor); got != AdaptiveFloor {
		t.Errorf("floorDuration = %v, want %v", got, AdaptiveFloor)
	}
}

func TestAdaptiveIntervalShrinksOnSuccessAndGrowsOnFailure(t *testing.T) {
	interval := 1000 * time.Second

	shrunk := floorDuration(time.Duration(float64(interval)*adaptiveSuccessFactor), AdaptiveFloor)
	if shrunk != 800*time.Second {
		t.Errorf("shrunk = %v, want 800s", shrunk)
	}

	grown := capDuration(time.Duration(float64(interval)*adaptiveFailureFactor), AdaptiveCeiling)
	if grown != 1500*time.Second {
		t.Errorf("grown = %v, want 1500s", grown)
	}
}
