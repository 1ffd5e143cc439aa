// Command dkimsync is a one-shot CLI: when -apex is given it first
// generates (or reuses) the DKIM key for that one domain, then rewrites
// opendkim's key and signing tables from every active key on record and
// signals the milter to reload. Keys for other domains are not generated.
// Intended to run from
// cron or a deploy hook, not as a long-lived process.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sparkpost-monitor/internal/config"
	"github.com/ignite/sparkpost-monitor/internal/dkimregistrar"
	"github.com/ignite/sparkpost-monitor/internal/pkg/distlock"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/repository/postgres"
)

func main() {
	apex := flag.String("apex", "", "generate a key for this domain apex before syncing (optional)")
	selector := flag.String("selector", "s1", "selector to use with -apex")
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	ctx := context.Background()
	keys := postgres.NewDkimKeyRepo(db)
	domains := postgres.NewDomainRepo(db)
	keyService := dkimregistrar.NewKeyService(cfg.DKIM.KeyDir, -1)

	if *apex != "" {
		generated, err := keyService.Generate(ctx, *apex, *selector)
		if err != nil {
			log.Fatalf("generate key for %s: %v", *apex, err)
		}
		logger.Info("dkim key ready", "apex", *apex, "selector", *selector, "reused", generated.Reused)
	}

	active, err := keys.ListAllActive(ctx)
	if err != nil {
		log.Fatalf("list active dkim keys: %v", err)
	}

	entries := make([]dkimregistrar.SyncEntry, 0, len(active))
	for _, k := range active {
		d, err := domains.GetByID(ctx, k.DomainID)
		if err != nil || d == nil {
			logger.Warn("dkim sync: domain lookup failed, skipping key", "domain_id", k.DomainID, "selector", k.Selector)
			continue
		}
		entries = append(entries, dkimregistrar.SyncEntry{
			Apex:           d.Apex,
			Selector:       k.Selector,
			PrivateKeyPath: k.PrivateKeyPath,
		})
	}

	sync := dkimregistrar.NewTableSync(cfg.DKIM.KeyTablePath, cfg.DKIM.SigningTablePath, cfg.DKIM.MilterPIDFile,
		func(key string) distlock.DistLock { return distlock.NewLock(rdb, db, key, 30*time.Second) })

	report, err := sync.Run(ctx, entries)
	if err != nil {
		log.Fatalf("table sync: %v", err)
	}

	logger.Info("dkim table sync complete", "key_lines", report.KeyLines, "signing_lines", report.SigningLines, "skipped", len(report.Skipped))
	for _, s := range report.Skipped {
		logger.Warn("dkim table sync skipped entry", "detail", s)
	}
}
