package domain

import "time"

// UsageAggregate is the per-tenant, per-UTC-day rollup of send activity.
// Unique on (tenant_id, day).
type UsageAggregate struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	Day        time.Time `json:"day" db:"day"`
	Sent       int       `json:"sent" db:"sent"`
	Delivered  int       `json:"delivered" db:"delivered"`
	Bounced    int       `json:"bounced" db:"bounced"`
	Complained int       `json:"complained" db:"complained"`
	Opens      int       `json:"opens" db:"opens"`
	Clicks     int       `json:"clicks" db:"clicks"`
}

// RateLimitCounter is the per-tenant, per-window monthly counter. Unique on
// (tenant_id, key, window_start).
type RateLimitCounter struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	Key         string    `json:"key" db:"key"`
	WindowStart time.Time `json:"window_start" db:"window_start"`
	Count       int       `json:"count" db:"count"`
}

// MonthlyKey builds the `messages:month:YYYY-MM-01` counter key for anchor.
func MonthlyKey(anchor time.Time) string {
	return "messages:month:" + anchor.Format("2006-01-02")
}

// MonthAnchor floors t to the first of its UTC month at midnight.
func MonthAnchor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayAnchor floors t to midnight UTC.
func DayAnchor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
