package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/perfwatch/internal/domain"
	"github.com/jeovahfialho/perfwatch/internal/service"
	"github.com/jeovahfialho/perfwatch/internal/writer"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error        { return s.err }
func (s stubPinger) HealthCheck(context.Context) error { return s.err }

type stubQueries struct {
	periods []domain.PeriodPerformance
	matches []domain.RealizedMatch
	filter  domain.MatchFilter
	err     error
}

func (q *stubQueries) ListPeriods(context.Context) ([]domain.PeriodPerformance, error) {
	return q.periods, q.err
}

func (q *stubQueries) ListMatches(_ context.Context, f domain.MatchFilter) ([]domain.RealizedMatch, error) {
	q.filter = f
	return q.matches, q.err
}

type stubRunner struct {
	report *service.RunReport
	err    error
	runs   int
}

func (r *stubRunner) RunOnce(context.Context) (*service.RunReport, error) {
	r.runs++
	return r.report, r.err
}

func (r *stubRunner) LastReport() *service.RunReport {
	if r.runs == 0 {
		return nil
	}
	return r.report
}

func newTestApp(h *Handler) *fiber.App {
	app := fiber.New()
	SetupRoutes(app, h, RouteConfig{
		MetricsEnabled: true,
		AdminUser:      "admin",
		AdminPassword:  "secret",
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return resp, body
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:secret")))
	return req
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{}, nil, nil))

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name  string
		store error
		cache HealthChecker
		want  int
	}{
		{"store up, no cache", nil, nil, http.StatusOK},
		{"store down", errors.New("dial tcp: refused"), nil, http.StatusServiceUnavailable},
		{"cache down", nil, stubPinger{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(NewHandler(stubPinger{err: tt.store}, tt.cache, &stubQueries{}, nil, nil))

			resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestListPerformance(t *testing.T) {
	queries := &stubQueries{periods: []domain.PeriodPerformance{
		{Period: "2024-01", TotalTrades: 3, TotalPnL: decimal.NewFromInt(34)},
	}}
	app := newTestApp(NewHandler(stubPinger{}, nil, queries, nil, nil))

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/performance", nil))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
	periods := body["periods"].([]any)
	if p := periods[0].(map[string]any); p["total_pnl"] != "34" {
		t.Errorf("total_pnl = %v, want \"34\"", p["total_pnl"])
	}
}

func TestListMatchesNormalizesSymbol(t *testing.T) {
	queries := &stubQueries{matches: []domain.RealizedMatch{
		{Symbol: "AAPL", SellDate: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}}
	app := newTestApp(NewHandler(stubPinger{}, nil, queries, nil, nil))

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/matches?symbol=aapl", nil))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if queries.filter.Symbol != "AAPL" {
		t.Errorf("filter symbol = %q, want AAPL", queries.filter.Symbol)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestListMatchesError(t *testing.T) {
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{err: errors.New("boom")}, nil, nil))

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil))

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if body["request_id"] == "" || body["request_id"] == nil {
		t.Error("error response has no request_id")
	}
}

func TestTriggerRunRequiresAuth(t *testing.T) {
	runner := &stubRunner{report: &service.RunReport{RunID: "r1"}}
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{}, runner, nil))

	resp, _ := do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/admin/run", nil))

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if runner.runs != 0 {
		t.Errorf("runs = %d, want 0", runner.runs)
	}
}

func TestTriggerRun(t *testing.T) {
	report := &service.RunReport{RunID: "r1", MatchWrites: writer.Stats{Created: 2}}
	runner := &stubRunner{report: report}

	var invalidated bool
	after := func(context.Context, *service.RunReport) { invalidated = true }
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{}, runner, after))

	resp, body := do(t, app, adminRequest(http.MethodPost, "/api/v1/admin/run"))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "completed" {
		t.Errorf("status field = %v, want completed", body["status"])
	}
	if !invalidated {
		t.Error("afterRun hook was not called for a changing run")
	}

	resp, body = do(t, app, adminRequest(http.MethodGet, "/api/v1/admin/runs/last"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("last run status = %d, want 200", resp.StatusCode)
	}
	if got := body["report"].(map[string]any)["run_id"]; got != "r1" {
		t.Errorf("run_id = %v, want r1", got)
	}
}

func TestTriggerRunFailure(t *testing.T) {
	runner := &stubRunner{report: &service.RunReport{RunID: "r2", Error: "store list"}, err: errors.New("store list")}
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{}, runner, nil))

	resp, body := do(t, app, adminRequest(http.MethodPost, "/api/v1/admin/run"))

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if body["status"] != "failed" {
		t.Errorf("status field = %v, want failed", body["status"])
	}
}

func TestLastRunBeforeAnyRun(t *testing.T) {
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{}, &stubRunner{}, nil))

	resp, _ := do(t, app, adminRequest(http.MethodGet, "/api/v1/admin/runs/last"))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAdminRoutesAbsentWithoutRunner(t *testing.T) {
	app := newTestApp(NewHandler(stubPinger{}, nil, &stubQueries{}, nil, nil))

	resp, _ := do(t, app, adminRequest(http.MethodPost, "/api/v1/admin/run"))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
