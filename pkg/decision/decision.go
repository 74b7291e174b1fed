// Package decision is the hot read path for perimeter consumers (C7):
// whitelist-priority blacklist checks backed by a Redis cache, plus the
// aggregated blocklist views and statistics.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/blacklistguard/pkg/blacklist"
	"github.com/wisbric/blacklistguard/pkg/whitelist"
)

// CacheTTL is how long a decision (positive or negative) stays cached
// before the DB is consulted again (§3 DecisionCacheEntry, P7 cache
// coherency bound).
const CacheTTL = 300 * time.Second

// Verdict is the result of check_blacklist.
type Verdict struct {
	Blocked  bool           `json:"blocked"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Service implements is_whitelisted / check_blacklist / active_blacklist /
// statistics against a blacklist.Store, a whitelist.Store, and an optional
// Redis cache.
type Service struct {
	blacklist blacklist.Store
	whitelist whitelist.Store
	cache     *redis.Client
	logger    *slog.Logger
}

// New builds a Service. cache may be nil, in which case every call falls
// through to the database (still correct, just uncached).
func New(bl blacklist.Store, wl whitelist.Store, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{blacklist: bl, whitelist: wl, cache: cache, logger: logger}
}

// IsWhitelisted implements §4.7 is_whitelisted: cache lookup, DB fallback on
// miss, cache write of either outcome. Cache write failures never fail the call.
func (s *Service) IsWhitelisted(ctx context.Context, ip string) (bool, error) {
	key := "whitelist:" + ip

	if s.cache != nil {
		val, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			return val == "1", nil
		}
		if err != redis.Nil {
			s.logger.Warn("whitelist cache read failed, falling through to db", "ip", ip, "error", err, "module", "decision")
		}
	}

	active, err := s.whitelist.IsActive(ctx, ip)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		v := "0"
		if active {
			v = "1"
		}
		if err := s.cache.Set(ctx, key, v, CacheTTL).Err(); err != nil {
			s.logger.Warn("whitelist cache write failed", "ip", ip, "error", err, "module", "decision")
		}
	}

	return active, nil
}

// CheckBlacklist implements §4.7 check_blacklist. Whitelist membership
// strictly precedes the blacklist lookup — the critical ordering invariant
// (P1). Errors fail open: legitimate traffic must never be blocked by a
// cache or database outage.
func (s *Service) CheckBlacklist(ctx context.Context, ip string) Verdict {
	whitelisted, err := s.IsWhitelisted(ctx, ip)
	if err != nil {
		s.logger.Error("whitelist check failed, failing open", "ip", ip, "error", err, "module", "decision")
		return s.logDecision(ip, Verdict{Blocked: false, Reason: "error"})
	}
	if whitelisted {
		return s.logDecision(ip, Verdict{Blocked: false, Reason: "whitelist", Metadata: map[string]any{"source": "whitelist"}})
	}

	key := "blacklist:" + ip
	if s.cache != nil {
		if cached, ok := s.readCachedVerdict(ctx, key); ok {
			cached.Metadata = mergeMetadata(cached.Metadata, map[string]any{"cache_hit": true})
			return s.logDecision(ip, cached)
		}
	}

	row, err := s.blacklist.Get(ctx, ip)
	if err != nil {
		s.logger.Error("blacklist lookup failed, failing open", "ip", ip, "error", err, "module", "decision")
		return s.logDecision(ip, Verdict{Blocked: false, Reason: "error"})
	}

	var verdict Verdict
	if row != nil && row.IsActive {
		verdict = Verdict{
			Blocked: true,
			Reason:  row.Reason,
			Metadata: map[string]any{
				"source":          row.Source,
				"detection_count": row.DetectionCount,
			},
		}
	} else {
		verdict = Verdict{Blocked: false, Reason: "not_in_blacklist"}
	}

	if s.cache != nil {
		s.writeCachedVerdict(ctx, key, verdict)
	}

	return s.logDecision(ip, verdict)
}

func (s *Service) readCachedVerdict(ctx context.Context, key string) (Verdict, bool) {
	raw, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("blacklist cache read failed, falling through to db", "key", key, "error", err, "module", "decision")
		}
		return Verdict{}, false
	}
	var v Verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Verdict{}, false
	}
	return v, true
}

func (s *Service) writeCachedVerdict(ctx context.Context, key string, v Verdict) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, CacheTTL).Err(); err != nil {
		s.logger.Warn("blacklist cache write failed", "key", key, "error", err, "module", "decision")
	}
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// logDecision emits the structured ALLOWED/BLOCKED decision log required by
// §4.7 and returns v unchanged, so callers can wrap returns with it.
func (s *Service) logDecision(ip string, v Verdict) Verdict {
	outcome := "ALLOWED"
	if v.Blocked {
		outcome = "BLOCKED"
	}
	s.logger.Info("decision", "outcome", outcome, "ip", ip, "reason", v.Reason, "metadata", v.Metadata, "module", "decision")
	return v
}
