// Package quota enforces per-plan monthly submission limits.
package quota

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// Monthly submission limits per plan. Unlimited is a sentinel for plans
// with no cap.
const (
	Unlimited int64 = -1

	limitFree    int64 = 10
	limitBasic   int64 = 100
	limitPremium int64 = 500
)

// LimitFor returns the monthly submission limit for a plan. Unknown plans
// fall back to the free tier.
func LimitFor(plan audit.Plan) int64 {
	switch plan {
	case audit.PlanBasic:
		return limitBasic
	case audit.PlanPremium:
		return limitPremium
	case audit.PlanEnterprise:
		return Unlimited
	default:
		return limitFree
	}
}

// CounterStore tracks monthly usage counters. Keys expire after the window
// they cover.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Decr(ctx context.Context, key string) error
}

// Gate admits or denies submissions against the requester's monthly quota.
type Gate struct {
	counters CounterStore
	clock    audit.Clock
	logger   *zap.Logger
}

// NewGate constructs a quota gate over the given counter store.
func NewGate(counters CounterStore, clock audit.Clock, logger *zap.Logger) *Gate {
	return &Gate{
		counters: counters,
		clock:    clock,
		logger:   logger,
	}
}

// Admit consumes one quota slot for the requester. Anonymous requesters and
// unlimited plans are always admitted without touching the counter. A denial
// releases the slot it tentatively consumed.
func (g *Gate) Admit(ctx context.Context, requester audit.Requester) (audit.Decision, error) {
	if requester.Anonymous() {
		return audit.Decision{Allowed: true}, nil
	}
	limit := LimitFor(requester.Plan)
	if limit == Unlimited {
		return audit.Decision{Allowed: true}, nil
	}

	now := g.clock.Now().UTC()
	key := monthKey(requester.ID, now)
	count, err := g.counters.Incr(ctx, key, untilNextMonth(now))
	if err != nil {
		return audit.Decision{}, fmt.Errorf("increment quota counter: %w", err)
	}
	if count > limit {
		if err := g.counters.Decr(ctx, key); err != nil {
			g.logger.Warn("failed to release quota slot",
				zap.String("key", key), zap.Error(err))
		}
		return audit.Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("monthly audit limit of %d reached for plan %q", limit, planOrFree(requester.Plan)),
		}, nil
	}
	return audit.Decision{Allowed: true}, nil
}

func planOrFree(plan audit.Plan) audit.Plan {
	if plan == "" {
		return audit.PlanFree
	}
	return plan
}

func monthKey(id string, now time.Time) string {
	return fmt.Sprintf("quota:%s:%s", id, now.Format("2006-01"))
}

// untilNextMonth returns the time remaining in the current calendar month,
// padded so a counter never expires mid-window.
func untilNextMonth(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return next.Sub(now) + time.Hour
}
