package domain

import "time"

// ContactStatus enumerates the states a contact can be in.
type ContactStatus string

const (
	ContactSubscribed   ContactStatus = "subscribed"
	ContactUnsubscribed ContactStatus = "unsubscribed"
	ContactBounced      ContactStatus = "bounced"
	ContactComplained   ContactStatus = "complained"
)

// Contact is a single address in a tenant's contact catalog.
type Contact struct {
	ID            string         `json:"id" db:"id"`
	TenantID      string         `json:"tenant_id" db:"tenant_id"`
	Email         string         `json:"email" db:"email"`
	FirstName     string         `json:"first_name,omitempty" db:"first_name"`
	LastName      string         `json:"last_name,omitempty" db:"last_name"`
	Status        ContactStatus  `json:"status" db:"status"`
	CustomFields  map[string]any `json:"custom_fields,omitempty" db:"custom_fields"`
	GDPRConsentAt *time.Time     `json:"gdpr_consent_at,omitempty" db:"gdpr_consent_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// HasConsent reports whether gdpr_consent, as referenced by a segment
// definition, is satisfied.
func (c *Contact) HasConsent() bool { return c.GDPRConsentAt != nil }

// ListGroup is a named grouping of contacts within a tenant.
type ListGroup struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListContact is the membership row of a Contact in a ListGroup.
type ListContact struct {
	ListID    string    `json:"list_id" db:"list_id"`
	ContactID string    `json:"contact_id" db:"contact_id"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}

// SegmentDefinition is the opaque, ANDed predicate set a Segment evaluates
// against the contact catalog. All fields are optional.
type SegmentDefinition struct {
	Status        string   `json:"status,omitempty"`
	EmailContains string   `json:"email_contains,omitempty"`
	GDPRConsent   *bool    `json:"gdpr_consent,omitempty"`
	InListIDs     []string `json:"in_list_ids,omitempty"`
	NotInListIDs  []string `json:"not_in_list_ids,omitempty"`
}

// Segment is a tenant-scoped saved audience definition.
type Segment struct {
	ID                string            `json:"id" db:"id"`
	TenantID          string            `json:"tenant_id" db:"tenant_id"`
	Name              string            `json:"name" db:"name"`
	Definition        SegmentDefinition `json:"definition" db:"-"`
	MaterializedCount int               `json:"materialized_count" db:"materialized_count"`
	LastBuiltAt       *time.Time        `json:"last_built_at,omitempty" db:"last_built_at"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}

// SegmentBuild is one evaluation run recorded against a Segment.
type SegmentBuild struct {
	ID        string    `json:"id" db:"id"`
	SegmentID string    `json:"segment_id" db:"segment_id"`
	Matches   int       `json:"matches" db:"matches"`
	Hash      string    `json:"hash" db:"hash"`
	BuiltAt   time.Time `json:"built_at" db:"built_at"`
}

// SegmentMember is one materialized (segment, contact) membership row.
type SegmentMember struct {
	SegmentID string    `json:"segment_id" db:"segment_id"`
	ContactID string    `json:"contact_id" db:"contact_id"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}
