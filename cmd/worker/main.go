// Command worker runs the long-lived consumer-group processes: the
// OutboundWorker draining the mail stream, the SegmentOrchestrator draining
// the segment-build stream, and the webhook delivery worker draining the
// webhook-deliveries stream. Each runs its own goroutine against a shared
// cancellable context, following the teacher's SendWorkerPool.Start/Stop
// shutdown shape (signal.Notify + sync.WaitGroup).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sparkpost-monitor/internal/config"
	"github.com/ignite/sparkpost-monitor/internal/kvstatus"
	"github.com/ignite/sparkpost-monitor/internal/mailsender"
	"github.com/ignite/sparkpost-monitor/internal/outbound"
	"github.com/ignite/sparkpost-monitor/internal/pkg/httpretry"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/repository/postgres"
	"github.com/ignite/sparkpost-monitor/internal/segment"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
	"github.com/ignite/sparkpost-monitor/internal/webhook"
)

const (
	mailStream    = "mail:outbound"
	mailGroup     = "senders"
	mailDLQ       = "mail:outbound:dlq"
	segmentStream = "seg:builds"
	segmentGroup  = "seg_builders"
	webhookStream = "webhooks:deliveries"
	webhookGroup  = "webhook_workers"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime())

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	bus := streambus.NewRedisBus(rdb)
	kv := kvstatus.NewRedisStore(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bus.EnsureGroup(ctx, mailStream, mailGroup, "0"); err != nil {
		log.Fatalf("ensure mail stream group: %v", err)
	}
	if err := bus.EnsureGroup(ctx, segmentStream, segmentGroup, "0"); err != nil {
		log.Fatalf("ensure segment stream group: %v", err)
	}
	if err := bus.EnsureGroup(ctx, webhookStream, webhookGroup, "0"); err != nil {
		log.Fatalf("ensure webhook stream group: %v", err)
	}

	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	var sender mailsender.Sender
	if cfg.Mailing.Sender == "ses" {
		sender = mailsender.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region)
	} else {
		sender = mailsender.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Timeout())
	}

	messages := postgres.NewMessageRepo(db)
	recipients := postgres.NewRecipientRepo(db)
	events := postgres.NewMessageEventRepo(db)

	outboundWorker := outbound.NewWorker(bus, kv, sender, messages, recipients, events, outbound.WorkerConfig{
		Stream:       mailStream,
		Group:        mailGroup,
		Consumer:     consumerName,
		DLQStream:    mailDLQ,
		Batch:        int64(cfg.Worker.Batch()),
		Block:        cfg.Worker.Block(),
		ClaimIdle:    cfg.Worker.ClaimIdle(),
		MaxRetries:   cfg.Worker.Retries(),
		Heartbeat:    cfg.Worker.Heartbeat(),
		TrackingBase: cfg.Tracking.BaseURL,
	})

	segmentBuilder := segment.NewBuilder(
		postgres.NewSegmentRepo(db),
		postgres.NewContactMatchRepo(db),
		postgres.NewSegmentMemberRepo(db),
		postgres.NewSegmentBuildRepo(db),
	)
	segmentOrchestrator := segment.NewOrchestrator(bus, kv, segmentBuilder, segment.OrchestratorConfig{
		Stream:    segmentStream,
		Group:     segmentGroup,
		Consumer:  consumerName,
		Batch:     int64(cfg.Worker.Batch()),
		Block:     cfg.Worker.Block(),
		ClaimIdle: 60 * time.Second, // matching §4.5's fixed autoclaim idle
	})

	httpClient := httpretry.NewRetryClient(nil, 3)
	webhookWorker := webhook.NewWorker(bus, postgres.NewWebhookRepo(db), postgres.NewWebhookDeliveryRepo(db), httpClient, webhook.WorkerConfig{
		Stream:    webhookStream,
		Group:     webhookGroup,
		Consumer:  consumerName,
		DLQStream: webhookStream + ":dlq",
		Batch:     int64(cfg.Worker.Batch()),
		Block:     cfg.Worker.Block(),
		ClaimIdle: cfg.Worker.ClaimIdle(),
	})

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				logger.Error("worker loop exited", "worker", name, "error", err.Error())
			}
		}()
	}

	run("outbound", outboundWorker.Run)
	run("segment", segmentOrchestrator.Run)
	run("webhook", webhookWorker.Run)

	logger.Info("worker started", "consumer", consumerName)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker shutting down")
	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}
