package dnsverify

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

type fakeResolver struct {
	txt   map[string][]string
	cname map[string]string
	mx    map[string][]*net.MX
}

func (f *fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if recs, ok := f.txt[name]; ok {
		return recs, nil
	}
	return nil, errors.New("no such txt record")
}

func (f *fakeResolver) LookupCNAME(ctx context.Context, name string) (string, error) {
	if c, ok := f.cname[name]; ok {
		return c, nil
	}
	return "", errors.New("no such cname record")
}

func (f *fakeResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	if recs, ok := f.mx[name]; ok {
		return recs, nil
	}
	return nil, errors.New("no such mx record")
}

type fakeHTTPDoer struct {
	body       string
	statusCode int
	err        error
}

func (f *fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	code := f.statusCode
	if code == 0 {
		code = http.StatusOK
	}
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func fullyPassingDomain() *domain.Domain {
	return &domain.Domain{
		ID:   "d1",
		Apex: "example.com",
		Expectations: domain.DomainExpectations{
			VerificationTXTName:  "_verify.example.com",
			VerificationTXTValue: "monkeys-verify=abc123",
			SPF:                  "v=spf1 include:_spf.example.com ~all",
			DMARC:                "v=DMARC1; p=reject",
			MX:                   []domain.MXHost{{Target: "mx1.example.com", Priority: 10}},
			DKIMSelector:         "s1",
			DKIMTXTValue:         "v=DKIM1; k=rsa; p=ABCDEF",
			TLSRPT:               "v=TLSRPTv1; rua=mailto:tls@example.com",
			MTASTSTarget:         "mta-sts.example.com",
			MTASTSAcmeTarget:     "acme.example.com",
		},
	}
}

func fullyPassingResolver() *fakeResolver {
	return &fakeResolver{
		txt: map[string][]string{
			"_verify.example.com":            {"monkeys-verify=abc123"},
			"example.com":                    {"v=spf1 include:_spf.example.com ~all"},
			"_dmarc.example.com":             {"v=DMARC1; p=reject"},
			"s1._domainkey.example.com":      {"v=DKIM1; k=rsa; p=ABCDEF"},
			"_smtp._tls.example.com":         {"v=TLSRPTv1; rua=mailto:tls@example.com"},
			"_mta-sts.example.com":           {"v=STSv1; id=20260101000000Z"},
		},
		cname: map[string]string{
			"mta-sts.example.com":                   "mta-sts.example.com.",
			"_acme-challenge.mta-sts.example.com":   "acme.example.com.",
		},
		mx:    map[string][]*net.MX{"example.com": {{Host: "mx1.example.com.", Pref: 10}}},
	}
}

func TestVerifyAllChecksPassMarksActive(t *testing.T) {
	resolver := fullyPassingResolver()
	doer := &fakeHTTPDoer{body: "version: STSv1\nmode: enforce\nmx: mx1.example.com\nmax_age: 604800\n"}
	v := NewVerifierWithDeps(resolver, doer, 0)

	report := v.Verify(context.Background(), fullyPassingDomain())
	require.True(t, report.Active)
	for name, check := range report.Checks {
		require.Equal(t, CheckPass, check.Status, "check %s should pass", name)
	}
}

func TestVerifyMissingExpectationSkipsCheck(t *testing.T) {
	d := &domain.Domain{Apex: "example.com"}
	v := NewVerifierWithDeps(&fakeResolver{}, &fakeHTTPDoer{}, 0)

	report := v.Verify(context.Background(), d)
	require.True(t, report.Active, "all-skipped report counts as active")
	for name, check := range report.Checks {
		require.Equal(t, CheckSkipped, check.Status, "check %s should be skipped", name)
	}
}

func TestVerifySPFMismatchFails(t *testing.T) {
	resolver := fullyPassingResolver()
	resolver.txt["example.com"] = []string{"v=spf1 include:wrong.example.com ~all"}
	doer := &fakeHTTPDoer{body: "version: STSv1\nmode: enforce\n"}
	v := NewVerifierWithDeps(resolver, doer, 0)

	report := v.Verify(context.Background(), fullyPassingDomain())
	require.False(t, report.Active)
	require.Equal(t, CheckFail, report.Checks["spf"].Status)
}

func TestVerifyMXSetMismatchFails(t *testing.T) {
	resolver := fullyPassingResolver()
	resolver.mx["example.com"] = []*net.MX{{Host: "mx2.example.com.", Pref: 20}}
	doer := &fakeHTTPDoer{body: "version: STSv1\n"}
	v := NewVerifierWithDeps(resolver, doer, 0)

	report := v.Verify(context.Background(), fullyPassingDomain())
	require.Equal(t, CheckFail, report.Checks["mx"].Status)
}

func TestVerifyDKIMComparesOnlyPValue(t *testing.T) {
	resolver := fullyPassingResolver()
	resolver.txt["s1._domainkey.example.com"] = []string{"v=DKIM1; k=rsa; t=s; p=ABCDEF"}
	doer := &fakeHTTPDoer{body: "version: STSv1\n"}
	v := NewVerifierWithDeps(resolver, doer, 0)

	report := v.Verify(context.Background(), fullyPassingDomain())
	require.Equal(t, CheckPass, report.Checks["dkim"].Status, "differing fields besides p= must not fail the check")
}

func TestVerifyMTASTSAcmeDelegationMismatchFails(t *testing.T) {
	resolver := fullyPassingResolver()
	resolver.cname["_acme-challenge.mta-sts.example.com"] = "wrong.example.com."
	doer := &fakeHTTPDoer{body: "version: STSv1\n"}
	v := NewVerifierWithDeps(resolver, doer, 0)

	report := v.Verify(context.Background(), fullyPassingDomain())
	require.Equal(t, CheckFail, report.Checks["mta_sts"].Status)
}

func TestVerifyMTASTSPolicyFetchFailureFails(t *testing.T) {
	resolver := fullyPassingResolver()
	doer := &fakeHTTPDoer{err: errors.New("connection refused")}
	v := NewVerifierWithDeps(resolver, doer, 0)

	report := v.Verify(context.Background(), fullyPassingDomain())
	require.Equal(t, CheckFail, report.Checks["mta_sts"].Status)
}
