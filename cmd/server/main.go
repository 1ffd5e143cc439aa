// Command server exposes the core's external ports (§6 of the
// specification) over a minimal chi HTTP surface: submit, verifyDomain,
// buildSegment, and a health check. Full HTTP controllers, auth, and every
// other tenant-facing concern are out of this core's scope; this binary
// wires ports to routes and stops there.
package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sparkpost-monitor/internal/config"
	"github.com/ignite/sparkpost-monitor/internal/dnsverify"
	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/outbound"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
	"github.com/ignite/sparkpost-monitor/internal/quota"
	"github.com/ignite/sparkpost-monitor/internal/repository/postgres"
	"github.com/ignite/sparkpost-monitor/internal/segment"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
	"github.com/ignite/sparkpost-monitor/internal/webhook"
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

	tenants := postgres.NewTenantRepo(db)
	messages := postgres.NewMessageRepo(db)
	recipients := postgres.NewRecipientRepo(db)
	events := postgres.NewMessageEventRepo(db)
	suppressions := postgres.NewSuppressionRepo(db)
	domains := postgres.NewDomainRepo(db)
	webhooks := postgres.NewWebhookRepo(db)
	deliveries := postgres.NewWebhookDeliveryRepo(db)

	quotaEngine := quota.NewEngine(postgres.NewUsageRepo(db), postgres.NewRateLimitRepo(db))
	ingest := outbound.NewIngest(messages, recipients, events, tenants, quotaEngine, bus, "mail:outbound").
		WithSuppressions(suppressions)

	segmentBuilder := segment.NewBuilder(
		postgres.NewSegmentRepo(db),
		postgres.NewContactMatchRepo(db),
		postgres.NewSegmentMemberRepo(db),
		postgres.NewSegmentBuildRepo(db),
	)

	dnsService := dnsverify.NewService(domains, dnsverify.NewVerifier())

	dispatcher := webhook.NewDispatcher(webhooks, deliveries, bus, "webhooks:deliveries")

	h := &handlers{ingest: ingest, segments: segmentBuilder, dns: dnsService, events: dispatcher}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}}))

	r.Get("/health", h.health)
	r.Route("/v1/tenants/{tenantID}", func(tr chi.Router) {
		tr.Post("/messages", h.submit)
		tr.Post("/domains/{domainID}/verify", h.verifyDomain)
		tr.Post("/segments/{segmentID}/build", h.buildSegment)
	})

	addr := cfg.Server.GetHost() + ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server shutting down")
}

type handlers struct {
	ingest   *outbound.Ingest
	segments *segment.Builder
	dns      *dnsverify.Service
	events   *webhook.Dispatcher
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// submitRequest mirrors outbound.IngestRequest's JSON shape (§4.3).
type submitRequest struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"from"`
	ReplyTo string `json:"replyTo"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
	To      []addressInput         `json:"to"`
	CC      []addressInput         `json:"cc"`
	BCC     []addressInput         `json:"bcc"`
	Headers map[string]string      `json:"headers"`
	Tracking struct {
		Opens  *bool `json:"opens"`
		Clicks *bool `json:"clicks"`
	} `json:"tracking"`
	DryRun    bool   `json:"dryRun"`
	RequestID string `json:"request_id"`
}

type addressInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func toAddrs(in []addressInput) []outbound.AddressInput {
	out := make([]outbound.AddressInput, len(in))
	for i, a := range in {
		out[i] = outbound.AddressInput{Email: a.Email, Name: a.Name}
	}
	return out
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindInvalidSender, err)
		return
	}

	resp, err := h.ingest.Ingest(r.Context(), outbound.IngestRequest{
		TenantID:  tenantID,
		FromEmail: req.From.Email,
		FromName:  req.From.Name,
		ReplyTo:   req.ReplyTo,
		Subject:   req.Subject,
		Text:      req.Text,
		HTML:      req.HTML,
		To:        toAddrs(req.To),
		CC:        toAddrs(req.CC),
		BCC:       toAddrs(req.BCC),
		Headers:   req.Headers,
		Tracking:  outbound.TrackingInput{Opens: req.Tracking.Opens, Clicks: req.Tracking.Clicks},
		DryRun:    req.DryRun,
		RequestID: req.RequestID,
	})
	if err != nil {
		writeError(w, statusFor(domain.KindOf(err)), domain.KindOf(err), err)
		return
	}

	// dispatchEvent (§6): fan the lifecycle transition out to tenant
	// webhooks. Best-effort — a dispatch failure never affects the ingest
	// response, matching §7's propagation policy for downstream fan-out.
	if resp.Message != nil {
		if _, dispatchErr := h.events.Dispatch(r.Context(), tenantID, string(resp.Status), resp.Message.ID, map[string]any{
			"message_id": resp.Message.ID,
			"status":     resp.Status,
		}); dispatchErr != nil {
			logger.Warn("webhook dispatch failed", "tenant_id", tenantID, "error", dispatchErr.Error())
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) verifyDomain(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	domainID := chi.URLParam(r, "domainID")

	report, err := h.dns.Verify(r.Context(), tenantID, domainID)
	if err != nil {
		writeError(w, statusFor(domain.KindOf(err)), domain.KindOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type buildSegmentRequest struct {
	Materialize bool `json:"materialize"`
}

func (h *handlers) buildSegment(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	segmentID := chi.URLParam(r, "segmentID")

	var req buildSegmentRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.segments.Build(r.Context(), tenantID, segmentID, req.Materialize)
	if err != nil {
		writeError(w, statusFor(domain.KindOf(err)), domain.KindOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindInvalidSender, domain.KindInvalidRecipients, domain.KindNoRecipients, domain.KindInvalidReplyTo:
		return http.StatusBadRequest
	case domain.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case domain.KindCrossTenant:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindQueueFailed:
		return http.StatusOK // the message is persisted; status is reported, not raised
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind domain.Kind, err error) {
	writeJSON(w, status, map[string]string{"status": "error", "kind": string(kind), "message": err.Error()})
}
