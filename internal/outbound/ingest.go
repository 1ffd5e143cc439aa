package outbound

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/quota"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

// AddressInput is one recipient entry, accepting either a bare address
// (Email only) or an {email, name} pair.
type AddressInput struct {
	Email string
	Name  string
}

// AttachmentInput is one attachment entry from the ingest request.
type AttachmentInput struct {
	Filename    string
	ContentType string
	Base64      string
}

// TrackingInput carries the per-message open/click toggles, defaulting to
// enabled when the caller omits them.
type TrackingInput struct {
	Opens  *bool
	Clicks *bool
}

// IngestRequest is OutboundIngest's typed input envelope.
type IngestRequest struct {
	TenantID    string
	FromEmail   string
	FromName    string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string
	To          []AddressInput
	CC          []AddressInput
	BCC         []AddressInput
	Headers     map[string]string
	Tracking    TrackingInput
	Attachments []AttachmentInput
	DryRun      bool
	RequestID   string
}

// IngestResponse is returned from Ingest regardless of outcome; Status
// mirrors the Message's final_state.
type IngestResponse struct {
	Status   domain.MessageState
	Message  *domain.Message
	Envelope []domain.MessageRecipient
}

// Ingest is the OutboundIngest component: validates a request, persists the
// Message and its recipients, and fans out one stream job per recipient.
type Ingest struct {
	messages   MessageRepository
	recipients RecipientRepository
	events     EventRepository
	tenants    TenantRepository
	quota      QuotaEnforcer
	bus        streambus.Bus
	stream     string
	dedup      *requestDedup
	suppressions SuppressionChecker
}

// NewIngest wires an Ingest over its repositories, QuotaEnforcer and
// StreamBus. stream is the mail stream name jobs are appended to.
func NewIngest(messages MessageRepository, recipients RecipientRepository, events EventRepository, tenants TenantRepository, q QuotaEnforcer, bus streambus.Bus, stream string) *Ingest {
	return &Ingest{
		messages:   messages,
		recipients: recipients,
		events:     events,
		tenants:    tenants,
		quota:      q,
		bus:        bus,
		stream:     stream,
		dedup:      newRequestDedup(10000),
	}
}

// WithSuppressions attaches a SuppressionChecker. Recipients matching an
// active suppression entry are marked suppressed and skipped during fan-out
// instead of being handed to the mail stream. Optional: nil (the default)
// disables the check entirely.
func (in *Ingest) WithSuppressions(c SuppressionChecker) *Ingest {
	in.suppressions = c
	return in
}

// normalizedRecipient is one validated, deduplicated recipient with its
// envelope bucket.
type normalizedRecipient struct {
	bucket domain.RecipientType
	email  string
	name   string
}

// Ingest validates req, persists the Message and recipients, and (unless
// DryRun) enqueues one stream job per recipient.
func (in *Ingest) Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error) {
	if cached, ok := in.dedup.get(req.RequestID); ok {
		return cached, nil
	}

	if _, err := mail.ParseAddress(req.FromEmail); err != nil {
		return nil, domain.NewError(domain.KindInvalidSender, err)
	}
	if req.ReplyTo != "" {
		if _, err := mail.ParseAddress(req.ReplyTo); err != nil {
			return nil, domain.NewError(domain.KindInvalidReplyTo, err)
		}
	}

	normalized := normalizeRecipients(req.To, req.CC, req.BCC)
	if len(normalized) == 0 {
		return nil, domain.NewError(domain.KindNoRecipients, nil)
	}

	headers := sanitizeHeaders(req.Headers)
	attachments := sanitizeAttachments(req.Attachments)

	trackOpens := req.Tracking.Opens == nil || *req.Tracking.Opens
	trackClicks := req.Tracking.Clicks == nil || *req.Tracking.Clicks

	now := time.Now()
	state := domain.MessageQueued
	if req.DryRun {
		state = domain.MessagePreview
	}

	msg := &domain.Message{
		ID:          uuid.New().String(),
		ExternalID:  uuid.New().String(),
		TenantID:    req.TenantID,
		FromEmail:   req.FromEmail,
		FromName:    req.FromName,
		ReplyTo:     req.ReplyTo,
		Subject:     req.Subject,
		HTMLContent: req.HTML,
		TextContent: req.Text,
		Headers:     headers,
		Attachments: attachments,
		TrackOpens:  trackOpens,
		TrackClicks: trackClicks,
		State:       state,
		CreatedAt:   now,
	}
	if !req.DryRun {
		msg.QueuedAt = &now
	}

	if err := in.messages.Create(ctx, msg); err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}

	envelope := make([]domain.MessageRecipient, 0, len(normalized))
	for _, r := range normalized {
		status := domain.RecipientQueued
		if !req.DryRun && in.suppressions != nil && in.suppressions.IsSuppressed(ctx, req.TenantID, r.email) {
			status = domain.RecipientSuppressed
		}
		envelope = append(envelope, domain.MessageRecipient{
			ID:            uuid.New().String(),
			MessageID:     msg.ID,
			Type:          r.bucket,
			Address:       r.email,
			Name:          r.name,
			Status:        status,
			TrackingToken: uuid.New().String(),
			CreatedAt:     now,
		})
	}
	if err := in.recipients.CreateBatch(ctx, envelope); err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}

	in.emitEvent(ctx, msg.ID, eventKindForState(state), now)

	if req.DryRun {
		resp := &IngestResponse{Status: domain.MessagePreview, Message: msg, Envelope: envelope}
		in.dedup.put(req.RequestID, resp)
		return resp, nil
	}

	if err := in.enforceQuota(ctx, req.TenantID, len(envelope), now); err != nil {
		return nil, err
	}

	enqueued := in.fanOut(ctx, msg, headers, envelope)
	if enqueued == 0 {
		msg.State = domain.MessageQueueFailed
		if err := in.messages.UpdateState(ctx, msg.ID, domain.MessageQueueFailed, nil); err != nil {
			logger.Warn("message state update failed", "message_id", msg.ID, "error", err.Error())
		}
		in.emitEvent(ctx, msg.ID, domain.EventQueueFailed, time.Now())
		resp := &IngestResponse{Status: domain.MessageQueueFailed, Message: msg, Envelope: envelope}
		return resp, domain.NewError(domain.KindQueueFailed, nil)
	}

	if err := in.quota.RecordEnqueue(ctx, req.TenantID, enqueued, now); err != nil {
		logger.Warn("quota record enqueue failed", "tenant_id", req.TenantID, "error", err.Error())
	}

	resp := &IngestResponse{Status: domain.MessageQueued, Message: msg, Envelope: envelope}
	in.dedup.put(req.RequestID, resp)
	return resp, nil
}

func (in *Ingest) enforceQuota(ctx context.Context, tenantID string, recipients int, now time.Time) error {
	tenant, err := in.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.NewError(domain.KindInternal, err)
	}
	plan, err := in.tenants.GetPlan(ctx, tenant.PlanID)
	if err != nil {
		return domain.NewError(domain.KindInternal, err)
	}
	limits := quota.Resolve(tenant, plan)
	return in.quota.Enforce(ctx, tenantID, limits, recipients, now)
}

// fanOut appends one job per recipient to the mail stream, returning the
// count of successful appends.
func (in *Ingest) fanOut(ctx context.Context, msg *domain.Message, headers map[string]string, envelope []domain.MessageRecipient) int {
	enqueued := 0
	for _, r := range envelope {
		if r.Status == domain.RecipientSuppressed {
			in.emitSuppressed(ctx, msg.ID, r.Address)
			continue
		}
		job := mailJob{
			MessageID:     msg.ID,
			TenantID:      msg.TenantID,
			FromEmail:     msg.FromEmail,
			FromName:      msg.FromName,
			ReplyTo:       msg.ReplyTo,
			Subject:       msg.Subject,
			HTMLContent:   msg.HTMLContent,
			TextContent:   msg.TextContent,
			Headers:       headers,
			Bucket:        r.Type,
			RecipientID:   r.ID,
			Address:       r.Address,
			Name:          r.Name,
			TrackingToken: r.TrackingToken,
			TrackOpens:    msg.TrackOpens,
			TrackClicks:   msg.TrackClicks,
			Retries:       0,
		}
		fields, err := streambus.EncodeJSON(job)
		if err != nil {
			logger.Warn("mail job encode failed", "message_id", msg.ID, "error", err.Error())
			continue
		}
		if _, err := in.bus.Append(ctx, in.stream, fields); err != nil {
			logger.Warn("mail job enqueue failed", "message_id", msg.ID, "error", err.Error())
			continue
		}
		enqueued++
	}
	return enqueued
}

func (in *Ingest) emitSuppressed(ctx context.Context, messageID, address string) {
	if err := in.events.Append(ctx, &domain.MessageEvent{
		ID:            uuid.New().String(),
		MessageID:     messageID,
		Kind:          domain.EventSuppressed,
		RecipientAddr: address,
		OccurredAt:    time.Now(),
	}); err != nil {
		logger.Warn("message event append failed", "message_id", messageID, "error", err.Error())
	}
}

func (in *Ingest) emitEvent(ctx context.Context, messageID string, kind domain.MessageEventKind, at time.Time) {
	if err := in.events.Append(ctx, &domain.MessageEvent{
		ID:         uuid.New().String(),
		MessageID:  messageID,
		Kind:       kind,
		OccurredAt: at,
	}); err != nil {
		logger.Warn("message event append failed", "message_id", messageID, "error", err.Error())
	}
}

func eventKindForState(state domain.MessageState) domain.MessageEventKind {
	switch state {
	case domain.MessagePreview:
		return domain.EventPreview
	default:
		return domain.EventQueued
	}
}

// normalizeRecipients trims, lower-cases the domain part of each address,
// validates, and deduplicates to|cc|bcc entries preserving insertion order
// across the three lists. Dedup compares the full address case-insensitively
// (RFC 5321 leaves the local-part case-sensitive in principle, but mailbox
// providers treat it as case-insensitive in practice and the spec's sample
// scenarios rely on that); the first-seen casing is what's stored.
func normalizeRecipients(to, cc, bcc []AddressInput) []normalizedRecipient {
	seen := make(map[string]bool)
	var out []normalizedRecipient

	add := func(bucket domain.RecipientType, list []AddressInput) {
		for _, a := range list {
			email := strings.TrimSpace(a.Email)
			if email == "" {
				continue
			}
			addr, err := mail.ParseAddress(email)
			if err != nil {
				continue
			}
			normalized := normalizeAddrSpec(addr.Address)
			dedupKey := strings.ToLower(normalized)
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true
			out = append(out, normalizedRecipient{bucket: bucket, email: normalized, name: strings.TrimSpace(a.Name)})
		}
	}

	add(domain.RecipientTo, to)
	add(domain.RecipientCC, cc)
	add(domain.RecipientBCC, bcc)
	return out
}

// normalizeAddrSpec lower-cases the domain part of an address, leaving the
// local-part's case untouched (RFC 5321 §2.4 treats the local-part as
// case-sensitive in principle, but the host is always case-insensitive).
func normalizeAddrSpec(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return strings.ToLower(addr)
	}
	return addr[:at] + "@" + strings.ToLower(addr[at+1:])
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if strings.TrimSpace(k) == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sanitizeAttachments(attachments []AttachmentInput) []domain.Attachment {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if a.Filename == "" || a.Base64 == "" {
			continue
		}
		out = append(out, domain.Attachment{Filename: a.Filename, ContentType: a.ContentType, Base64: a.Base64})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
