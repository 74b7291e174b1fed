package regtech

import (
	"context"
	"fmt"

	"github.com/wisbric/blacklistguard/pkg/collector"
)

// Source adapts Client to the pkg/collector.Source contract, holding the
// credentials needed to (re-)authenticate on demand.
type Source struct {
	client   *Client
	username string
	password string
	scheduled bool // true when driven by the scheduler's daily/adaptive tick
}

// NewSource wraps client with the credentials required for login.
func NewSource(client *Client, username, password string) *Source {
	return &Source{client: client, username: username, password: password}
}

// SetScheduled marks whether the next Collect call should be treated as a
// scheduled run (enabling the all-data fallback strategy) versus a manual
// trigger (§4.3 strategy #4).
func (s *Source) SetScheduled(scheduled bool) { s.scheduled = scheduled }

// Name implements collector.Source.
func (s *Source) Name() string { return ServiceName }

// Authenticate implements collector.Source.
func (s *Source) Authenticate(ctx context.Context) error {
	ok, err := s.client.Authenticate(ctx, s.username, s.password)
	if err != nil {
		return fmt.Errorf("regtech authenticate: %w", err)
	}
	if !ok {
		return fmt.Errorf("regtech authenticate: credentials rejected")
	}
	return nil
}

// Collect implements collector.Source. It drives the strategy sweep: the
// first strategy whose first page yields any records terminates the sweep
// (§4.3). A page that 302-redirects to the login page aborts the run with
// session_expired so the caller can re-authenticate on the next attempt.
func (s *Source) Collect(ctx context.Context, rng collector.DateRange, maxPages int) ([]collector.Record, error) {
	if !s.client.auth.isAuthenticated() {
		if err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	strategies := buildStrategies(rng, s.scheduled)

	for _, strat := range strategies {
		records, err := s.sweepStrategy(ctx, strat, maxPages)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return toCollectorRecords(records), nil
		}
	}

	return nil, nil
}

const defaultPageSize = 100

func (s *Source) sweepStrategy(ctx context.Context, strat strategy, maxPages int) ([]parsedRecord, error) {
	var all []parsedRecord

	for page := 0; page < maxPages; page++ {
		if s.client.limiter != nil {
			s.client.limiter.Acquire(ctx, 1, 0)
		}

		resp, body, err := s.client.listPage(ctx, page, defaultPageSize, strat.start, strat.end)
		if err != nil {
			if s.client.limiter != nil {
				s.client.limiter.OnFailure(0)
			}
			return nil, fmt.Errorf("list page %d (%s): %w", page, strat.name, err)
		}

		if resp.StatusCode == 302 && IsCookieExpired(resp) {
			s.client.auth.invalidate()
			return nil, fmt.Errorf("session_expired")
		}

		if resp.StatusCode != 200 {
			if s.client.limiter != nil {
				s.client.limiter.OnFailure(resp.StatusCode)
			}
			break
		}

		if s.client.limiter != nil {
			s.client.limiter.OnSuccess()
		}

		records := parseListResponse(body, func(msg string, args ...any) {
			s.client.logger.Debug(msg, args...)
		})
		if len(records) == 0 {
			break
		}

		all = append(all, records...)
	}

	return all, nil
}

func toCollectorRecords(records []parsedRecord) []collector.Record {
	out := make([]collector.Record, 0, len(records))
	for _, r := range records {
		confidence := r.Confidence
		out = append(out, collector.Record{
			IPAddress:   r.IPAddress,
			Country:     r.Country,
			Reason:      r.Reason,
			Confidence:  &confidence,
			DetectionAt: r.DetectionAt,
			RemovalAt:   r.RemovalAt,
			RawPayload:  r.RawPayload,
		})
	}
	return out
}
