package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/httpretry"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

// WorkerConfig tunes a Worker's consumer-group loop.
type WorkerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	Batch     int64         // default 20
	Block     time.Duration // default 5s
	ClaimIdle time.Duration // default 60s
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

// Worker is the webhook delivery worker: a consumer-group reader that signs
// and POSTs each delivery job, re-enqueueing on failure until the webhook's
// max-retries is exhausted.
type Worker struct {
	bus        streambus.Bus
	webhooks   WebhookRepository
	deliveries DeliveryRepository
	http       httpretry.HTTPDoer
	cfg        WorkerConfig
}

// NewWorker builds a Worker over its dependencies. client defaults to a
// retry-wrapped http.Client with a 10s timeout when nil.
func NewWorker(bus streambus.Bus, webhooks WebhookRepository, deliveries DeliveryRepository, client httpretry.HTTPDoer, cfg WorkerConfig) *Worker {
	if cfg.Consumer == "" {
		cfg.Consumer = "webhook-worker-" + uuid.New().String()[:8]
	}
	if client == nil {
		client = httpretry.NewRetryClient(&http.Client{Timeout: 10 * time.Second}, 2)
	}
	return &Worker{bus: bus, webhooks: webhooks, deliveries: deliveries, http: client, cfg: cfg}
}

// Run drives the consumer loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.drainPending(ctx); err != nil {
		logger.Warn("webhook drain pending failed", "consumer", w.cfg.Consumer, "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if entries, _, err := w.bus.AutoClaim(ctx, w.cfg.Stream, w.cfg.Group, w.cfg.Consumer, w.cfg.claimIdle(), "0-0", w.cfg.batch()); err != nil {
			logger.Warn("webhook autoclaim failed", "consumer", w.cfg.Consumer, "error", err.Error())
		} else {
			for _, e := range entries {
				w.process(ctx, e)
			}
		}

		entries, err := w.bus.ReadGroup(ctx, w.cfg.Stream, w.cfg.Group, w.cfg.Consumer, ">", w.cfg.batch(), w.cfg.block())
		if err != nil {
			logger.Warn("webhook read group failed", "consumer", w.cfg.Consumer, "error", err.Error())
			continue
		}
		for _, e := range entries {
			w.process(ctx, e)
		}
	}
}

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

func (w *Worker) process(ctx context.Context, entry streambus.Entry) {
	var job deliveryJob
	if err := streambus.DecodeJSON(entry.Fields, &job); err != nil || job.WebhookID == "" {
		logger.Warn("malformed webhook job dropped", "entry_id", entry.ID, "error", errString(err))
		w.ack(ctx, entry.ID)
		return
	}

	hook, err := w.webhooks.Get(ctx, job.WebhookID)
	if err != nil || hook == nil || !hook.Active {
		logger.Warn("webhook job references missing or inactive webhook", "webhook_id", job.WebhookID, "entry_id", entry.ID)
		w.ack(ctx, entry.ID)
		return
	}

	httpCode, responseMS, deliverErr := w.deliver(ctx, hook, job)
	now := time.Now()

	if deliverErr == nil {
		w.setStatus(ctx, job.DeliveryID, domain.DeliverySucceeded, httpCode, responseMS, nil)
		w.ack(ctx, entry.ID)
		return
	}

	maxRetries := hook.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if job.Attempt >= maxRetries {
		w.setStatus(ctx, job.DeliveryID, domain.DeliveryFailed, httpCode, responseMS, nil)
		w.deadLetter(ctx, job, deliverErr.Error(), now)
		w.ack(ctx, entry.ID)
		return
	}

	nextRetryAt := now.Add(hook.BackoffFor(job.Attempt + 1))
	w.setStatus(ctx, job.DeliveryID, domain.DeliveryRetrying, httpCode, responseMS, &nextRetryAt)
	w.reenqueue(ctx, hook, job)
	w.ack(ctx, entry.ID)
}

// deliver signs and POSTs the delivery's payload, returning the HTTP status
// code (0 if the request never completed), elapsed time, and any error.
func (w *Worker) deliver(ctx context.Context, hook *domain.Webhook, job deliveryJob) (int, int64, error) {
	body, err := json.Marshal(job.Payload)
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	now := time.Now()
	timestamp, signature := sign(hook.Secret, body, now)
	req.Header.Set("X-Monkeys-Id", job.DeliveryID)
	req.Header.Set("X-Monkeys-Timestamp", timestamp)
	req.Header.Set("X-Monkeys-Signature", signature)

	start := time.Now()
	resp, err := w.http.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return 0, elapsed, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, elapsed, &statusError{code: resp.StatusCode}
	}
	return resp.StatusCode, elapsed, nil
}

func (w *Worker) reenqueue(ctx context.Context, hook *domain.Webhook, job deliveryJob) {
	job.Attempt++
	job.EnqueuedAt = time.Now()
	delay := hook.BackoffFor(job.Attempt)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	fields, err := streambus.EncodeJSON(job)
	if err != nil {
		logger.Warn("webhook retry re-encode failed", "delivery_id", job.DeliveryID, "error", err.Error())
		return
	}
	if _, err := w.bus.Append(ctx, w.cfg.Stream, fields); err != nil {
		logger.Warn("webhook retry re-append failed", "delivery_id", job.DeliveryID, "error", err.Error())
	}
}

func (w *Worker) deadLetter(ctx context.Context, job deliveryJob, errMsg string, at time.Time) {
	if w.cfg.DLQStream == "" {
		return
	}
	payload := map[string]any{"json": job, "error": errMsg, "at": at}
	raw, _ := json.Marshal(payload)
	if _, err := w.bus.Append(ctx, w.cfg.DLQStream, map[string]string{"json": string(raw)}); err != nil {
		logger.Warn("webhook dlq append failed", "delivery_id", job.DeliveryID, "error", err.Error())
	}
}

func (w *Worker) setStatus(ctx context.Context, deliveryID string, status domain.WebhookDeliveryStatus, httpCode int, responseMS int64, nextRetryAt *time.Time) {
	if err := w.deliveries.UpdateResult(ctx, deliveryID, status, httpCode, responseMS, nextRetryAt); err != nil {
		logger.Warn("webhook delivery status update failed", "delivery_id", deliveryID, "error", err.Error())
	}
}

func (w *Worker) ack(ctx context.Context, entryID string) {
	if err := w.bus.Ack(ctx, w.cfg.Stream, w.cfg.Group, entryID); err != nil {
		logger.Warn("webhook ack failed", "entry_id", entryID, "error", err.Error())
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return "webhook returned non-2xx status"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
