package domain

import "time"

// ESPType identifies which outbound transport a message is handed to. The
// core speaks to exactly one SMTP port per §1's non-goals, but the shipped
// wiring also carries the teacher's AWS SES v2 sender as an alternate
// MailSender selected by the Mailing.Sender config setting.
type ESPType string

const (
	ESPSMTP ESPType = "smtp"
	ESPSES  ESPType = "ses"
)

// EmailMessage is the fully-resolved, single-recipient message handed to a
// MailSender. One job always contains exactly one recipient address so that
// open/click tracking can be attributed per address (§4.3).
type EmailMessage struct {
	ID          string            `json:"id"`
	MessageID   string            `json:"message_id"`
	TenantID    string            `json:"tenant_id"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to,omitempty"`
	To          []Address         `json:"to,omitempty"`
	CC          []Address         `json:"cc,omitempty"`
	BCC         []Address         `json:"bcc,omitempty"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content"`
	TextContent string            `json:"text_content"`
	Headers     map[string]string `json:"headers,omitempty"`
	ESPType     ESPType           `json:"esp_type"`
}

// Address is a recipient or sender mailbox with an optional display name.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendResult is returned by a MailSender after attempting delivery.
type SendResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	ESPType   ESPType   `json:"esp_type"`
	SentAt    time.Time `json:"sent_at"`
	Error     string    `json:"error,omitempty"`
}

// SendingProfile holds the SMTP/ESP credentials a tenant's domain sends
// through. Nothing in the send path reads it: the MailSender is chosen
// once per process from configuration.
type SendingProfile struct {
	ID         string  `json:"id" db:"id"`
	TenantID   string  `json:"tenant_id" db:"tenant_id"`
	DomainID   string  `json:"domain_id" db:"domain_id"`
	VendorType ESPType `json:"vendor_type" db:"vendor_type"`
	SMTPHost   string  `json:"smtp_host" db:"smtp_host"`
	SMTPPort   int     `json:"smtp_port" db:"smtp_port"`
	SMTPUser   string  `json:"-" db:"smtp_username"`
	SMTPPass   string  `json:"-" db:"smtp_password"`
	AWSRegion  string  `json:"aws_region,omitempty" db:"aws_region"`
	AWSKey     string  `json:"-" db:"aws_access_key"`
	AWSSecret  string  `json:"-" db:"aws_secret_key"`
}

// DomainStatus enumerates the verification lifecycle of a sending Domain.
type DomainStatus string

const (
	DomainPending DomainStatus = "pending"
	DomainActive  DomainStatus = "active"
	DomainFailed  DomainStatus = "failed"
)

// DomainExpectations captures the DNS values DnsVerifier checks a Domain
// against.
type DomainExpectations struct {
	VerificationTXTName  string   `json:"verification_txt_name"`
	VerificationTXTValue string   `json:"verification_txt_value"`
	SPF                  string   `json:"spf"`
	DMARC                string   `json:"dmarc"`
	MX                   []MXHost `json:"mx"`
	DKIMSelector         string   `json:"dkim_selector"`
	DKIMTXTValue         string   `json:"dkim_txt_value"`
	TLSRPT               string   `json:"tls_rpt"`
	MTASTSTarget         string   `json:"mta_sts_target"`
	MTASTSAcmeTarget     string   `json:"mta_sts_acme_target"`
}

// MXHost is one expected mail-exchanger record.
type MXHost struct {
	Target   string `json:"target"`
	Priority int    `json:"priority"`
}

// DomainFlags are per-domain sending policy toggles.
type DomainFlags struct {
	RequireTLS  bool `json:"require_tls"`
	ARCSign     bool `json:"arc_sign"`
	BIMIEnabled bool `json:"bimi_enabled"`
}

// Domain is a tenant's sending (apex) domain and its verification state.
// Owns zero or more DkimKey rows (selector-scoped signing keys).
type Domain struct {
	ID                 string             `json:"id" db:"id"`
	TenantID           string             `json:"tenant_id" db:"tenant_id"`
	Apex               string             `json:"apex" db:"apex"`
	Expectations       DomainExpectations `json:"expectations" db:"-"`
	Flags              DomainFlags        `json:"flags" db:"-"`
	Status             DomainStatus       `json:"status" db:"status"`
	LastCheckedAt      *time.Time         `json:"last_checked_at,omitempty" db:"last_checked_at"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty" db:"verified_at"`
	VerificationReport string             `json:"verification_report,omitempty" db:"verification_report"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
}

// DkimKey is a per-(domain, selector) RSA signing key. At most one key may
// be Active for a given (DomainID, Selector) pair.
type DkimKey struct {
	ID             string     `json:"id" db:"id"`
	DomainID       string     `json:"domain_id" db:"domain_id"`
	Selector       string     `json:"selector" db:"selector"`
	PublicPEM      string     `json:"public_pem" db:"public_pem"`
	PrivateKeyPath string     `json:"-" db:"private_key_path"`
	TXTValue       string     `json:"txt_value" db:"txt_value"`
	Active         bool       `json:"active" db:"active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	RotatedAt      *time.Time `json:"rotated_at,omitempty" db:"rotated_at"`
}
