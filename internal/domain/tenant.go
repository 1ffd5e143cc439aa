package domain

import "time"

// Tenant is the top-level owner of all sending activity. It is created and
// deleted externally (by the out-of-scope tenant/user CRUD surface); the
// core only ever reads it to resolve plan limits and per-tenant overrides.
type Tenant struct {
	ID             string    `json:"id" db:"id"`
	PlanID         string    `json:"plan_id" db:"plan_id"`
	DailyOverride  int       `json:"daily_override,omitempty" db:"daily_override"`
	MonthOverride  int       `json:"month_override,omitempty" db:"month_override"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// PlanQuotas holds the feature-map quota keys the QuotaEngine reads.
type PlanQuotas struct {
	EmailsPerDay   int `json:"emailsPerDay"`
	EmailsPerMonth int `json:"emailsPerMonth"`
}

// Plan is the billing plan a Tenant is subscribed to.
type Plan struct {
	ID               string     `json:"id" db:"id"`
	MonthlyPrice     float64    `json:"monthly_price" db:"monthly_price"`
	IncludedMessages int        `json:"included_messages" db:"included_messages"`
	Quotas           PlanQuotas `json:"quotas" db:"-"`
}

// DailyLimit resolves the tenant's effective daily send limit. Zero means
// "no limit".
func (t *Tenant) DailyLimit(p *Plan) int {
	if t.DailyOverride > 0 {
		return t.DailyOverride
	}
	if p != nil {
		return p.Quotas.EmailsPerDay
	}
	return 0
}

// MonthlyLimit resolves the tenant's effective monthly send limit. Zero
// means "no limit". Falls back to the plan's included-messages count when
// the feature map does not carry an explicit monthly quota.
func (t *Tenant) MonthlyLimit(p *Plan) int {
	if t.MonthOverride > 0 {
		return t.MonthOverride
	}
	if p == nil {
		return 0
	}
	if p.Quotas.EmailsPerMonth > 0 {
		return p.Quotas.EmailsPerMonth
	}
	return p.IncludedMessages
}
