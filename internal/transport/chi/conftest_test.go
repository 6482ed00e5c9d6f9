package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/domain/screening"
	healthuc "github.com/kailas-cloud/screener/internal/usecase/health"
	screeninguc "github.com/kailas-cloud/screener/internal/usecase/screening"
)

type mockScreener struct {
	screenFn func(ctx context.Context, req *screeninguc.Request) (*screening.Result, error)
	got      *screeninguc.Request
	calls    int
}

func (m *mockScreener) Screen(ctx context.Context, req *screeninguc.Request) (*screening.Result, error) {
	m.calls++
	m.got = req
	if m.screenFn != nil {
		return m.screenFn(ctx, req)
	}
	return screening.NewResult(), nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func healthyReport() healthuc.Report {
	return healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"catalog": healthuc.CheckOK, "embedding": healthuc.CheckOK},
	}
}

func newTestRouter(t *testing.T, sc *mockScreener, apiKeys ...string) http.Handler {
	t.Helper()
	srv := NewServer(sc, &mockHealth{report: healthyReport()})
	return NewRouter(srv, apiKeys, zap.NewNop())
}

func postScreening(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/screenings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
