package regtech

import (
	"time"

	"github.com/wisbric/blacklistguard/pkg/collector"
)

// strategy is one named date-range probe in the sweep ordering (§4.3).
type strategy struct {
	name  string
	start string // "" means unbounded
	end   string
}

const dateLayout = "2006-01-02"

// buildStrategies returns the ordered list of date-range probes for a run.
// The first strategy to yield any records terminates the sweep (§4.3):
// user-specified range (if given), recent-1-day, recent-90-day, then an
// unfiltered all-data probe appended only when no range was given and the
// run is a scheduled tick. recent-1-day/recent-90-day always run regardless
// of scheduled — that flag only gates whether all-data is appended.
func buildStrategies(rng collector.DateRange, scheduled bool) []strategy {
	today := time.Now()

	if rng.Start.IsZero() && rng.End.IsZero() {
		strategies := []strategy{
			{name: "recent-1-day", start: today.AddDate(0, 0, -1).Format(dateLayout), end: today.Format(dateLayout)},
			{name: "recent-90-day", start: today.AddDate(0, 0, -90).Format(dateLayout), end: today.Format(dateLayout)},
		}
		if scheduled {
			strategies = append(strategies, strategy{name: "all-data"})
		}
		return strategies
	}

	end := rng.End
	if end.IsZero() {
		end = today
	}

	strategies := []strategy{
		{name: "recent-1-day", start: today.AddDate(0, 0, -1).Format(dateLayout), end: end.Format(dateLayout)},
		{name: "recent-90-day", start: today.AddDate(0, 0, -90).Format(dateLayout), end: end.Format(dateLayout)},
	}

	if !rng.Start.IsZero() {
		strategies = append([]strategy{{name: "user-specified", start: rng.Start.Format(dateLayout), end: end.Format(dateLayout)}}, strategies...)
	}

	return strategies
}
