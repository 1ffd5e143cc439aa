package segment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/kvstatus"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

// buildJob is the canonical payload appended to the segment stream.
type buildJob struct {
	TenantID    string    `json:"tenant"`
	SegmentID   string    `json:"segment"`
	Materialize bool      `json:"materialize"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Enqueue appends a build job for (tenant, segment) to the segment stream.
func Enqueue(ctx context.Context, bus streambus.Bus, stream, tenantID, segmentID string, materialize bool) (string, error) {
	fields, err := streambus.EncodeJSON(buildJob{
		TenantID:    tenantID,
		SegmentID:   segmentID,
		Materialize: materialize,
		EnqueuedAt:  time.Now(),
	})
	if err != nil {
		return "", err
	}
	return bus.Append(ctx, stream, fields)
}

// OrchestratorConfig tunes an Orchestrator's consumer-group loop.
type OrchestratorConfig struct {
	Stream    string
	Group     string
	Consumer  string
	Batch     int64
	Block     time.Duration
	ClaimIdle time.Duration // default 60s per §4.5
}

func (c OrchestratorConfig) batch() int64 {
	if c.Batch == 0 {
		return 20
	}
	return c.Batch
}

func (c OrchestratorConfig) block() time.Duration {
	if c.Block == 0 {
		return 5 * time.Second
	}
	return c.Block
}

func (c OrchestratorConfig) claimIdle() time.Duration {
	if c.ClaimIdle == 0 {
		return 60 * time.Second
	}
	return c.ClaimIdle
}

// Orchestrator drains the segment stream and runs Builder.Build for each
// job, reporting progress through KVStatus.
type Orchestrator struct {
	bus     streambus.Bus
	kv      kvstatus.Store
	builder *Builder
	cfg     OrchestratorConfig
}

// NewOrchestrator wires an Orchestrator over a Builder and its stream.
func NewOrchestrator(bus streambus.Bus, kv kvstatus.Store, builder *Builder, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Consumer == "" {
		cfg.Consumer = "segment-worker-" + uuid.New().String()[:8]
	}
	return &Orchestrator{bus: bus, kv: kv, builder: builder, cfg: cfg}
}

// Run drives the consumer loop until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.drainPending(ctx); err != nil {
		logger.Warn("segment drain pending failed", "consumer", o.cfg.Consumer, "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if entries, _, err := o.bus.AutoClaim(ctx, o.cfg.Stream, o.cfg.Group, o.cfg.Consumer, o.cfg.claimIdle(), "0-0", o.cfg.batch()); err != nil {
			logger.Warn("segment autoclaim failed", "consumer", o.cfg.Consumer, "error", err.Error())
		} else {
			for _, e := range entries {
				o.process(ctx, e)
			}
		}

		entries, err := o.bus.ReadGroup(ctx, o.cfg.Stream, o.cfg.Group, o.cfg.Consumer, ">", o.cfg.batch(), o.cfg.block())
		if err != nil {
			logger.Warn("segment read group failed", "consumer", o.cfg.Consumer, "error", err.Error())
			continue
		}
		for _, e := range entries {
			o.process(ctx, e)
		}
	}
}

func (o *Orchestrator) drainPending(ctx context.Context) error {
	entries, err := o.bus.ReadGroup(ctx, o.cfg.Stream, o.cfg.Group, o.cfg.Consumer, "0", o.cfg.batch(), 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		o.process(ctx, e)
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, entry streambus.Entry) {
	var job buildJob
	if err := streambus.DecodeJSON(entry.Fields, &job); err != nil || job.SegmentID == "" {
		logger.Warn("malformed segment job dropped", "entry_id", entry.ID)
		o.ack(ctx, entry.ID)
		return
	}

	key := kvstatus.SegmentStatusKey(job.TenantID, job.SegmentID)
	result, err := o.builder.Build(ctx, job.TenantID, job.SegmentID, job.Materialize)
	if err != nil {
		o.writeStatus(ctx, key, map[string]any{"status": "error", "message": err.Error()})
		o.ack(ctx, entry.ID)
		return
	}

	o.writeStatus(ctx, key, map[string]any{
		"status":  "ok",
		"matches": result.Matches,
		"added":   result.Added,
		"removed": result.Removed,
		"kept":    result.Kept,
		"builtAt": result.BuiltAt,
	})
	o.ack(ctx, entry.ID)
}

func (o *Orchestrator) writeStatus(ctx context.Context, key string, payload map[string]any) {
	if o.kv == nil {
		return
	}
	if err := o.kv.Set(ctx, key, payload, kvstatus.DefaultTTL); err != nil {
		logger.Warn("segment status write failed", "key", key, "error", err.Error())
	}
}

func (o *Orchestrator) ack(ctx context.Context, entryID string) {
	if err := o.bus.Ack(ctx, o.cfg.Stream, o.cfg.Group, entryID); err != nil {
		logger.Warn("segment ack failed", "entry_id", entryID, "error", err.Error())
	}
}
