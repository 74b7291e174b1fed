package normalize

import "log/slog"

// DedupCap is the memory-cap on the within-run dedup set; beyond this the
// remaining records are dropped with a single warning (§4.4 dedup).
const DedupCap = 1_000_000

// Dedup removes repeat IPs within a single collection run, first occurrence
// wins. Once the seen-set reaches DedupCap, further records are dropped and
// a single warning is logged.
func Dedup(records []Normalized, logger *slog.Logger) []Normalized {
	seen := make(map[string]struct{}, min(len(records), DedupCap))
	out := make([]Normalized, 0, len(records))
	truncated := false

	for _, r := range records {
		if _, ok := seen[r.IPAddress]; ok {
			continue
		}
		if len(seen) >= DedupCap {
			if !truncated && logger != nil {
				logger.Warn("dedup set reached capacity, truncating remainder", "cap", DedupCap, "module", "normalize")
				truncated = true
			}
			continue
		}
		seen[r.IPAddress] = struct{}{}
		out = append(out, r)
	}

	return out
}
