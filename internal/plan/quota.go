package plan

import "math"

// Usage is the tenant consumption compared against a plan
type Usage struct {
	Cost  float64
	Calls int
}

// UsageView is the normalized usage against the plan's monthly cost ceiling
type UsageView struct {
	Cost       float64 `json:"cost"`
	Calls      int     `json:"calls"`
	Limit      float64 `json:"limit"`
	Percentage int     `json:"percentage"`
}

// QuotaResult is the outcome of a cost quota check
type QuotaResult struct {
	WithinLimits bool      `json:"within_limits"`
	Plan         string    `json:"plan"`
	Usage        UsageView `json:"usage"`
}

// ResourceQuota is the outcome of a countable resource check
type ResourceQuota struct {
	Resource     Resource `json:"resource"`
	Plan         string   `json:"plan"`
	Used         int      `json:"used"`
	Limit        int      `json:"limit"`
	Remaining    int      `json:"remaining"`
	WithinLimits bool     `json:"within_limits"`
}

// CheckQuota compares usage against the plan's monthly cost ceiling.
// A cost equal to the limit is not within limits. Percentage may exceed 100.
func (r *Registry) CheckQuota(usage Usage, planID string) QuotaResult {
	p := r.Get(planID)
	limit := p.Limits.CostPerMonth

	return QuotaResult{
		WithinLimits: usage.Cost < limit,
		Plan:         p.Name,
		Usage: UsageView{
			Cost:       math.Round(usage.Cost*1e4) / 1e4,
			Calls:      usage.Calls,
			Limit:      limit,
			Percentage: int(math.Round(usage.Cost / limit * 100)),
		},
	}
}

// CheckResourceQuota compares a count against one of the plan's countable limits.
// Unknown resources are reported as outside limits.
func (r *Registry) CheckResourceQuota(resource Resource, used int, planID string) ResourceQuota {
	p := r.Get(planID)
	limit, ok := p.limitFor(resource)

	q := ResourceQuota{
		Resource: resource,
		Plan:     p.Name,
		Used:     used,
		Limit:    limit,
	}
	if !ok {
		return q
	}

	q.Remaining = max(limit-used, 0)
	q.WithinLimits = used < limit
	return q
}
