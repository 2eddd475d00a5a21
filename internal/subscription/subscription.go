// Package subscription exposes the billing collaborator: plan tier,
// status and per-plan limits used to gate call sites. The core storage
// and transport layers never consult it.
package subscription

import (
	"context"
	"math"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanTeam Plan = "team"
)

// Status is a billing lifecycle state
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
	StatusTrialing Status = "trialing"
)

// Subscription is the billing provider's view of a user
type Subscription struct {
	Plan              Plan
	Status            Status
	CustomerID        string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// Limits are the per-plan feature gates
type Limits struct {
	MaxAnalysesPerMonth int
	CanCompare          bool
	CanExportPDF        bool
	CanAccessAPI        bool
}

// Unlimited marks a plan with no monthly analysis cap
const Unlimited = math.MaxInt

var planLimits = map[Plan]Limits{
	PlanFree: {MaxAnalysesPerMonth: 3},
	PlanPro:  {MaxAnalysesPerMonth: Unlimited, CanCompare: true, CanExportPDF: true},
	PlanTeam: {MaxAnalysesPerMonth: Unlimited, CanCompare: true, CanExportPDF: true, CanAccessAPI: true},
}

// LimitsFor returns the feature gates for a plan. Unknown plans get the
// free tier.
func LimitsFor(plan Plan) Limits {
	if limits, ok := planLimits[plan]; ok {
		return limits
	}
	return planLimits[PlanFree]
}

// Resolver fetches the subscription for a user from the billing provider
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*Subscription, error)
}

// StaticResolver always returns the same subscription. Used for guests
// (free plan) and in tests.
type StaticResolver struct {
	Subscription Subscription
}

// Resolve returns the fixed subscription
func (r *StaticResolver) Resolve(_ context.Context, _ string) (*Subscription, error) {
	sub := r.Subscription
	return &sub, nil
}

// FreeResolver returns a resolver pinned to an active free plan
func FreeResolver() *StaticResolver {
	return &StaticResolver{Subscription: Subscription{Plan: PlanFree, Status: StatusActive}}
}

// cacheTTL matches the billing provider's 30 s response cache window
const cacheTTL = 30 * time.Second

// CachedResolver wraps a Resolver with a short-lived per-user cache so
// repeated gate checks do not hammer the billing provider.
type CachedResolver struct {
	inner Resolver
	cache *cache.Cache
}

// NewCachedResolver wraps inner with a 30 s TTL cache
func NewCachedResolver(inner Resolver) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

// Resolve returns the cached subscription when fresh, otherwise asks
// the inner resolver and caches the answer.
func (r *CachedResolver) Resolve(ctx context.Context, userID string) (*Subscription, error) {
	if cached, found := r.cache.Get(userID); found {
		if sub, ok := cached.(*Subscription); ok {
			return sub, nil
		}
	}

	sub, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(userID, sub, cacheTTL)
	return sub, nil
}
