package decision

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Format selects the rendering of ActiveBlacklist's output.
type Format string

const (
	FormatText      Format = "text"
	FormatEnhanced  Format = "enhanced"
	FormatFortigate Format = "fortigate"
)

// EnhancedEntry is one row of the "enhanced" view.
type EnhancedEntry struct {
	IPAddress string `json:"ip_address"`
	Source    string `json:"source"`
	Reason    string `json:"reason"`
	Country   *string `json:"country,omitempty"`
}

// FortigateEntry mirrors the structured push/pull payload FortiGate expects.
type FortigateEntry struct {
	IP     string `json:"ip"`
	Action string `json:"action"`
}

// FortigateView is the top-level fortigate-format response.
type FortigateView struct {
	Entries []FortigateEntry `json:"entries"`
	Total   int              `json:"total"`
	Format  string           `json:"format"`
}

// activePageSize bounds a single DB round-trip while still covering large
// blocklists; views page through the store internally and concatenate.
const activePageSize = 5000

// allActive loads every active, non-whitelisted blocked IP, paging through
// the store. The set difference against the active whitelist happens in the
// store's query (ListActiveExcludingWhitelist's anti-join), never by
// filtering an already-materialized response in application memory (§4.7).
func (s *Service) allActive(ctx context.Context) ([]blacklistRow, error) {
	var all []blacklistRow
	offset := 0
	for {
		rows, total, err := s.blacklist.ListActiveExcludingWhitelist(ctx, activePageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("listing active blocked ips: %w", err)
		}
		for _, r := range rows {
			all = append(all, blacklistRow{IPAddress: r.IPAddress, Source: r.Source, Reason: r.Reason, Country: r.Country})
		}
		offset += len(rows)
		if offset >= total || len(rows) == 0 {
			break
		}
	}
	return all, nil
}

type blacklistRow struct {
	IPAddress string
	Source    string
	Reason    string
	Country   *string
}

// ActiveBlacklistText returns the active IPs as an ascending-sorted slice,
// with whitelisted entries excluded by the store's query, not by this method.
func (s *Service) ActiveBlacklistText(ctx context.Context) ([]string, error) {
	rows, err := s.allActive(ctx)
	if err != nil {
		return nil, err
	}

	ips := make([]string, 0, len(rows))
	for _, r := range rows {
		ips = append(ips, r.IPAddress)
	}
	sort.Strings(ips)
	return ips, nil
}

// ActiveBlacklistEnhanced returns the IP+metadata array view, whitelist-filtered
// by the store's query.
func (s *Service) ActiveBlacklistEnhanced(ctx context.Context) ([]EnhancedEntry, error) {
	rows, err := s.allActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]EnhancedEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, EnhancedEntry{IPAddress: r.IPAddress, Source: r.Source, Reason: r.Reason, Country: r.Country})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IPAddress < out[j].IPAddress })
	return out, nil
}

// ActiveBlacklistFortigate returns the structured FortiGate push format.
func (s *Service) ActiveBlacklistFortigate(ctx context.Context) (FortigateView, error) {
	ips, err := s.ActiveBlacklistText(ctx)
	if err != nil {
		return FortigateView{}, err
	}
	entries := make([]FortigateEntry, len(ips))
	for i, ip := range ips {
		entries[i] = FortigateEntry{IP: ip, Action: "block"}
	}
	return FortigateView{Entries: entries, Total: len(entries), Format: string(FormatFortigate)}, nil
}

// Statistics is the aggregated view returned by the statistics() operation.
type Statistics struct {
	TotalActive      int            `json:"total_active"`
	TotalInactive     int            `json:"total_inactive"`
	BySource          map[string]int `json:"by_source"`
	Recent24hAdditions int           `json:"recent_24h_additions"`
}

// Statistics reports counts by source, the active/inactive split, and
// recent-24h additions (§4.7). now is injected so callers (and tests)
// control the recency window.
func (s *Service) Statistics(ctx context.Context, now time.Time) (Statistics, error) {
	bySource, err := s.blacklist.CountBySource(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting by source: %w", err)
	}

	total, err := s.blacklist.TotalCount(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting total: %w", err)
	}

	recent, err := s.blacklist.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return Statistics{}, fmt.Errorf("counting recent additions: %w", err)
	}

	totalActive := 0
	for _, c := range bySource {
		totalActive += c
	}

	return Statistics{
		TotalActive:        totalActive,
		TotalInactive:      total - totalActive,
		BySource:            bySource,
		Recent24hAdditions: recent,
	}, nil
}
