package dnsverify

import (
	"context"
	"fmt"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// DomainRepository is the persistence port Service writes verification
// outcomes through.
type DomainRepository interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Domain, error)
	UpdateVerification(ctx context.Context, id string, status domain.DomainStatus, report string) error
}

// Service runs a Verifier against a stored Domain and persists the result,
// flipping domain.status to active iff every check passes.
type Service struct {
	domains  DomainRepository
	verifier *Verifier
}

// NewService wires a Service over its repository and Verifier.
func NewService(domains DomainRepository, verifier *Verifier) *Service {
	return &Service{domains: domains, verifier: verifier}
}

// Verify loads the Domain, runs every check, and persists the resulting
// status and report. Returns the report for callers (e.g. an API handler)
// that want to surface it immediately.
func (s *Service) Verify(ctx context.Context, tenantID, domainID string) (*Report, error) {
	d, err := s.domains.Get(ctx, tenantID, domainID)
	if err != nil {
		return nil, fmt.Errorf("dnsverify: load domain: %w", err)
	}
	if d == nil {
		return nil, domain.NewError(domain.KindNotFound, nil)
	}

	report := s.verifier.Verify(ctx, d)

	status := domain.DomainPending
	if report.Active {
		status = domain.DomainActive
	}

	reportJSON, err := marshalReport(report)
	if err != nil {
		return nil, fmt.Errorf("dnsverify: marshal report: %w", err)
	}

	if err := s.domains.UpdateVerification(ctx, domainID, status, reportJSON); err != nil {
		return nil, fmt.Errorf("dnsverify: persist verification: %w", err)
	}

	return report, nil
}
