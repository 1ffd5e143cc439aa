package outbound

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/kvstatus"
	"github.com/ignite/sparkpost-monitor/internal/mailsender"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

// WorkerConfig tunes a Worker's consumer-group loop. Zero values fall back
// to the spec defaults noted per field.
type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	DLQStream     string
	Batch         int64         // default 20
	Block         time.Duration // default 5s
	ClaimIdle     time.Duration // default 60s
	MaxRetries    int           // default 5
	Heartbeat     time.Duration // default 5s
	TrackingBase  string
}

func (c WorkerConfig) batch() int64 {
	if c.Batch == 0 {
		return 20
	}
	return c.Batch
}

func (c WorkerConfig) block() time.Duration {
	if c.Block == 0 {
		return 5 * time.Second
	}
	return c.Block
}

func (c WorkerConfig) claimIdle() time.Duration {
	if c.ClaimIdle == 0 {
		return 60 * time.Second
	}
	return c.ClaimIdle
}

func (c WorkerConfig) maxRetries() int {
	if c.MaxRetries == 0 {
		return 5
	}
	return c.MaxRetries
}

func (c WorkerConfig) heartbeat() time.Duration {
	if c.Heartbeat == 0 {
		return 5 * time.Second
	}
	return c.Heartbeat
}

// Worker is the OutboundWorker: a single consumer in the mail stream's
// consumer group. Run one Worker per goroutine/process, each with a
// distinct Consumer name, per §5's concurrency model.
type Worker struct {
	bus        streambus.Bus
	kv         kvstatus.Store
	sender     mailsender.Sender
	messages   MessageRepository
	recipients RecipientRepository
	events     EventRepository
	cfg        WorkerConfig

	lastHeartbeat map[string]time.Time
}

// NewWorker builds a Worker over its dependencies.
func NewWorker(bus streambus.Bus, kv kvstatus.Store, sender mailsender.Sender, messages MessageRepository, recipients RecipientRepository, events EventRepository, cfg WorkerConfig) *Worker {
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-" + uuid.New().String()[:8]
	}
	return &Worker{
		bus:           bus,
		kv:            kv,
		sender:        sender,
		messages:      messages,
		recipients:    recipients,
		events:        events,
		cfg:           cfg,
		lastHeartbeat: make(map[string]time.Time),
	}
}

// Run drives the consumer loop until ctx is canceled. It must be called
// after EnsureGroup has created the consumer group.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.drainPending(ctx); err != nil {
		logger.Warn("drain pending failed", "consumer", w.cfg.Consumer, "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.autoClaimStale(ctx); err != nil {
			logger.Warn("autoclaim failed", "consumer", w.cfg.Consumer, "error", err.Error())
		}

		entries, err := w.bus.ReadGroup(ctx, w.cfg.Stream, w.cfg.Group, w.cfg.Consumer, ">", w.cfg.batch(), w.cfg.block())
		if err != nil {
			logger.Warn("read group failed", "consumer", w.cfg.Consumer, "error", err.Error())
			continue
		}
		for _, e := range entries {
			w.process(ctx, e)
		}
	}
}

// drainPending re-processes this consumer's own pending entries from id
// "0" once at startup, in case the process crashed mid-job last time.
func (w *Worker) drainPending(ctx context.Context) error {
	entries, err := w.bus.ReadGroup(ctx, w.cfg.Stream, w.cfg.Group, w.cfg.Consumer, "0", w.cfg.batch(), 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		w.process(ctx, e)
	}
	return nil
}

// autoClaimStale takes ownership of entries idle longer than ClaimIdle and
// processes them immediately.
func (w *Worker) autoClaimStale(ctx context.Context) error {
	entries, _, err := w.bus.AutoClaim(ctx, w.cfg.Stream, w.cfg.Group, w.cfg.Consumer, w.cfg.claimIdle(), "0-0", w.cfg.batch())
	if err != nil {
		return err
	}
	for _, e := range entries {
		w.process(ctx, e)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, entry streambus.Entry) {
	var job mailJob
	if err := streambus.DecodeJSON(entry.Fields, &job); err != nil || job.MessageID == "" {
		logger.Warn("malformed mail job dropped", "entry_id", entry.ID, "error", errString(err))
		w.ack(ctx, entry.ID)
		return
	}

	msg, err := w.messages.Get(ctx, job.TenantID, job.MessageID)
	if err != nil || msg == nil {
		logger.Warn("mail job references missing message", "message_id", job.MessageID, "entry_id", entry.ID)
		w.ack(ctx, entry.ID)
		return
	}

	html := job.HTMLContent
	if job.TrackingToken != "" && w.cfg.TrackingBase != "" {
		if job.TrackClicks {
			html = rewriteClickLinks(html, w.cfg.TrackingBase, job.TrackingToken)
		}
		if job.TrackOpens {
			html = injectOpenPixel(html, w.cfg.TrackingBase, job.TrackingToken)
		}
	}

	emailMsg := &domain.EmailMessage{
		MessageID:   job.MessageID,
		TenantID:    job.TenantID,
		FromEmail:   job.FromEmail,
		FromName:    job.FromName,
		ReplyTo:     job.ReplyTo,
		Subject:     job.Subject,
		HTMLContent: html,
		TextContent: job.TextContent,
		Headers:     job.Headers,
	}
	addr := domain.Address{Email: job.Address, Name: job.Name}
	switch job.Bucket {
	case domain.RecipientCC:
		emailMsg.CC = []domain.Address{addr}
	case domain.RecipientBCC:
		emailMsg.BCC = []domain.Address{addr}
	default:
		emailMsg.To = []domain.Address{addr}
	}

	result, sendErr := w.sender.Send(ctx, emailMsg)
	if sendErr != nil || result == nil || !result.Success {
		w.handleFailure(ctx, entry, job, errString(sendErr))
		return
	}

	w.handleSuccess(ctx, entry, job, msg, result)
}

func (w *Worker) handleSuccess(ctx context.Context, entry streambus.Entry, job mailJob, msg *domain.Message, result *domain.SendResult) {
	now := time.Now()
	if err := w.messages.UpdateState(ctx, job.MessageID, domain.MessageSent, &now); err != nil {
		logger.Warn("message state update failed", "message_id", job.MessageID, "error", err.Error())
	}

	if err := w.recipients.UpdateStatus(ctx, job.RecipientID, domain.RecipientSent, now); err != nil {
		logger.Warn("recipient status update failed", "message_id", job.MessageID, "error", err.Error())
	}

	w.appendEvent(ctx, job.MessageID, domain.EventSent, job.Address, now)
	w.writeHeartbeat(ctx, job, "sent", 100, &now, nil)
	w.ack(ctx, entry.ID)
}

func (w *Worker) handleFailure(ctx context.Context, entry streambus.Entry, job mailJob, errMsg string) {
	now := time.Now()
	if job.Retries+1 > w.cfg.maxRetries() {
		job.Retries++
		payload := map[string]any{
			"json":  job,
			"error": errMsg,
			"at":    now,
		}
		raw, _ := json.Marshal(payload)
		if _, err := w.bus.Append(ctx, w.cfg.DLQStream, map[string]string{"json": string(raw)}); err != nil {
			logger.Warn("dlq append failed", "message_id", job.MessageID, "error", err.Error())
		}
		if err := w.messages.UpdateState(ctx, job.MessageID, domain.MessageFailed, nil); err != nil {
			logger.Warn("message state update failed", "message_id", job.MessageID, "error", err.Error())
		}
		if err := w.recipients.UpdateStatus(ctx, job.RecipientID, domain.RecipientFailed, now); err != nil {
			logger.Warn("recipient status update failed", "message_id", job.MessageID, "error", err.Error())
		}
		w.appendEvent(ctx, job.MessageID, domain.EventFailed, job.Address, now)
		w.writeHeartbeat(ctx, job, "error", 100, nil, &now)
		w.ack(ctx, entry.ID)
		return
	}

	job.Retries++
	fields, err := streambus.EncodeJSON(job)
	if err != nil {
		logger.Warn("retry re-encode failed", "message_id", job.MessageID, "error", err.Error())
		w.ack(ctx, entry.ID)
		return
	}
	if _, err := w.bus.Append(ctx, w.cfg.Stream, fields); err != nil {
		logger.Warn("retry re-append failed", "message_id", job.MessageID, "error", err.Error())
		return
	}
	// Ack only after the replacement entry has been appended, so a crash
	// between append and ack at worst reprocesses the job twice rather than
	// losing it.
	w.ack(ctx, entry.ID)
}

func (w *Worker) appendEvent(ctx context.Context, messageID string, kind domain.MessageEventKind, addr string, at time.Time) {
	if err := w.events.Append(ctx, &domain.MessageEvent{
		ID:            uuid.New().String(),
		MessageID:     messageID,
		Kind:          kind,
		RecipientAddr: addr,
		OccurredAt:    at,
	}); err != nil {
		logger.Warn("message event append failed", "message_id", messageID, "error", err.Error())
	}
}

// writeHeartbeat writes the mail:status:{tenant}:{message} KVStatus record,
// rate-limited to the configured heartbeat interval unless the state is
// terminal.
func (w *Worker) writeHeartbeat(ctx context.Context, job mailJob, status string, progress int, sentAt, failedAt *time.Time) {
	if w.kv == nil {
		return
	}
	key := kvstatus.MailStatusKey(job.TenantID, job.MessageID)
	terminal := status == "sent" || status == "error"
	if !terminal {
		if last, ok := w.lastHeartbeat[key]; ok && time.Since(last) < w.cfg.heartbeat() {
			return
		}
	}
	w.lastHeartbeat[key] = time.Now()

	payload := kvstatus.Payload{
		Status:    status,
		Progress:  progress,
		UpdatedAt: time.Now(),
		SentAt:    sentAt,
		FailedAt:  failedAt,
	}
	if err := w.kv.Set(ctx, key, payload, kvstatus.DefaultTTL); err != nil {
		logger.Warn("heartbeat write failed", "key", key, "error", err.Error())
	}
}

func (w *Worker) ack(ctx context.Context, entryID string) {
	if err := w.bus.Ack(ctx, w.cfg.Stream, w.cfg.Group, entryID); err != nil {
		logger.Warn("ack failed", "entry_id", entryID, "error", err.Error())
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
