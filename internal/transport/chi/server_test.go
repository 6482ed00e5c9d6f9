package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/screener/internal/domain"
	"github.com/kailas-cloud/screener/internal/domain/screening"
	healthuc "github.com/kailas-cloud/screener/internal/usecase/health"
	screeninguc "github.com/kailas-cloud/screener/internal/usecase/screening"
)

const fullRequest = `{
  "hard_constraints": {
    "country": "IT",
    "target_latitude": 45.4408,
    "target_longitude": 12.3155,
    "holiday_begin_date": "2025-10-20",
    "holiday_end_date": "2025-10-27T00:00:00",
    "not_available_date_times": ["2025-10-25T09:00"],
    "blocked_intervals": [{"start": "2025-10-26T10:00:00Z", "end": "2025-10-26T12:00:00Z"}],
    "age": 34,
    "max_pax": 2,
    "semantic_exclusions": {"fears": ["heights"], "diet": [], "accessibility": [], "medical": []}
  },
  "soft_preferences": {
    "preference_text": "boat tours and local food",
    "interests": ["food"],
    "activity_level": "moderate",
    "price_max": 15000,
    "notes": null
  }
}`

func TestCreateScreening_Success(t *testing.T) {
	sc := &mockScreener{screenFn: func(_ context.Context, _ *screeninguc.Request) (*screening.Result, error) {
		res := screening.NewResult()
		res.Products = []screening.Product{{ProductID: "p1", OptionID: "o1", UnitID: "u1", Score: 0.91}}
		res.Apply(screening.PhaseConstraintCompiler)
		res.Apply(screening.PhaseSemanticRanker)
		return res, nil
	}}
	rr := postScreening(t, newTestRouter(t, sc), fullRequest)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Products []struct {
			ProductID string  `json:"productId"`
			OptionID  string  `json:"optionId"`
			UnitID    string  `json:"unitId"`
			Score     float64 `json:"score"`
		} `json:"products"`
		Message       *string  `json:"message"`
		PhasesApplied []string `json:"phasesApplied"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].ProductID != "p1" || body.Products[0].Score != 0.91 {
		t.Errorf("unexpected products: %+v", body.Products)
	}
	if body.Message != nil {
		t.Errorf("expected null message, got %q", *body.Message)
	}
	if len(body.PhasesApplied) != 2 || body.PhasesApplied[0] != "constraint_compiler" {
		t.Errorf("unexpected phases: %v", body.PhasesApplied)
	}
}

func TestCreateScreening_RequestMapping(t *testing.T) {
	sc := &mockScreener{}
	rr := postScreening(t, newTestRouter(t, sc), fullRequest)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	hc := sc.got.Constraints
	if hc.NormalizedCountry() != "IT" {
		t.Errorf("country: got %q", hc.NormalizedCountry())
	}
	if hc.Target == nil || hc.Target.Latitude != 45.4408 || hc.Target.Longitude != 12.3155 {
		t.Errorf("target: got %+v", hc.Target)
	}
	if hc.Accommodation != nil {
		t.Errorf("accommodation should be nil, got %+v", hc.Accommodation)
	}
	if hc.DateBegin == nil || hc.DateBegin.String() != "2025-10-20" {
		t.Errorf("begin: got %v", hc.DateBegin)
	}
	if hc.DateEnd == nil || hc.DateEnd.String() != "2025-10-27" {
		t.Errorf("end with time part should truncate to the day, got %v", hc.DateEnd)
	}
	if len(hc.Blocked) != 2 {
		t.Fatalf("expected 2 blocked intervals, got %d", len(hc.Blocked))
	}
	instant := time.Date(2025, 10, 25, 9, 0, 0, 0, time.UTC)
	if !hc.Blocked[0].Start.Equal(instant) || !hc.Blocked[0].End.Equal(instant) {
		t.Errorf("instant: got %+v", hc.Blocked[0])
	}
	if hc.Blocked[1].End.Sub(hc.Blocked[1].Start) != 2*time.Hour {
		t.Errorf("interval: got %+v", hc.Blocked[1])
	}
	if hc.Age == nil || *hc.Age != 34 || hc.MaxPax == nil || *hc.MaxPax != 2 {
		t.Errorf("age/max_pax: %v %v", hc.Age, hc.MaxPax)
	}
	if hc.Exclusions.Text() != "heights" {
		t.Errorf("exclusions: got %q", hc.Exclusions.Text())
	}

	sp := sc.got.Preferences
	if sp.Text() != "boat tours and local food" {
		t.Errorf("preference text: got %q", sp.Text())
	}
	if sp.PriceMax == nil || *sp.PriceMax != 15000 {
		t.Errorf("price_max: got %v", sp.PriceMax)
	}
	if sp.ActivityLevel != "moderate" || sp.Notes != "" {
		t.Errorf("activity/notes: %q %q", sp.ActivityLevel, sp.Notes)
	}
}

func TestCreateScreening_EmptyBody(t *testing.T) {
	sc := &mockScreener{}
	rr := postScreening(t, newTestRouter(t, sc), `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !sc.got.Constraints.IsEmpty() {
		t.Error("expected empty constraints")
	}
}

func TestCreateScreening_MalformedJSON(t *testing.T) {
	sc := &mockScreener{}
	rr := postScreening(t, newTestRouter(t, sc), `{"hard_constraints":`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != CodeBadRequest {
		t.Errorf("expected code %q, got %q", CodeBadRequest, errResp.Code)
	}
	if sc.calls != 0 {
		t.Error("screener must not be called")
	}
}

func TestCreateScreening_ShapeErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"half target", `{"hard_constraints":{"target_latitude":45.0}}`, "target_location"},
		{"half accommodation", `{"hard_constraints":{"accommodation_longitude":12.0}}`, "accommodation_location"},
		{"bad begin", `{"hard_constraints":{"holiday_begin_date":"20/10/2025"}}`, "holiday_begin_date"},
		{"bad end", `{"hard_constraints":{"holiday_end_date":"soon"}}`, "holiday_end_date"},
		{"bad instant", `{"hard_constraints":{"not_available_date_times":["", "tomorrow"]}}`, "not_available_date_times[1]"},
		{"bad interval start", `{"hard_constraints":{"blocked_intervals":[{"start":"x","end":"2025-10-26T12:00"}]}}`, "blocked_intervals[0]"},
		{"inverted interval", `{"hard_constraints":{"blocked_intervals":[{"start":"2025-10-26T12:00","end":"2025-10-26T10:00"}]}}`, "blocked_intervals[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &mockScreener{}
			rr := postScreening(t, newTestRouter(t, sc), tt.body)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != CodeInvalidConstraints {
				t.Errorf("expected code %q, got %q", CodeInvalidConstraints, errResp.Code)
			}
			if errResp.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, errResp.Field)
			}
			if sc.calls != 0 {
				t.Error("screener must not be called")
			}
		})
	}
}

func TestCreateScreening_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantField  string
		retryAfter string
	}{
		{
			name:       "config error",
			err:        fmt.Errorf("compile: %w", domain.NewConfigError("date_window", "begin is after end")),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidConstraints,
			wantField:  "date_window",
		},
		{
			name:       "upstream",
			err:        domain.Unavailable("catalog query", errors.New("dial tcp: refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeUpstreamUnavailable,
			retryAfter: "5",
		},
		{
			name:       "internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &mockScreener{screenFn: func(context.Context, *screeninguc.Request) (*screening.Result, error) {
				return nil, tt.err
			}}
			rr := postScreening(t, newTestRouter(t, sc), `{}`)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := rr.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After: expected %q, got %q", tt.retryAfter, got)
			}
			var errResp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, errResp.Code)
			}
			if errResp.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, errResp.Field)
			}
		})
	}
}

func TestCreateScreening_InternalErrorHidesDetails(t *testing.T) {
	sc := &mockScreener{screenFn: func(context.Context, *screeninguc.Request) (*screening.Result, error) {
		return nil, errors.New("redis: secret-host:6379 refused")
	}}
	rr := postScreening(t, newTestRouter(t, sc), `{}`)

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Message != "internal error" {
		t.Errorf("expected generic message, got %q", errResp.Message)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		report     healthuc.Report
		wantStatus int
	}{
		{"healthy", healthyReport(), http.StatusOK},
		{"degraded", healthuc.Report{
			Status: healthuc.Degraded,
			Checks: map[string]healthuc.CheckResult{"catalog": healthuc.CheckOK, "embedding": healthuc.CheckError},
		}, http.StatusOK},
		{"unhealthy", healthuc.Report{
			Status: healthuc.Unhealthy,
			Checks: map[string]healthuc.CheckResult{"catalog": healthuc.CheckError},
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&mockScreener{}, &mockHealth{report: tt.report})
			h := NewRouter(srv, []string{"secret"}, zap.NewNop())

			req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			var body HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != string(tt.report.Status) {
				t.Errorf("expected status %q, got %q", tt.report.Status, body.Status)
			}
			if len(body.Checks) != len(tt.report.Checks) {
				t.Errorf("expected %d checks, got %d", len(tt.report.Checks), len(body.Checks))
			}
		})
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	sc := &mockScreener{}
	h := newTestRouter(t, sc, "secret")

	rr := postScreening(t, h, `{}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if sc.calls != 0 {
		t.Error("screener must not be called without auth")
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	rr := postScreening(t, newTestRouter(t, &mockScreener{}), `{}`)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &mockScreener{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	h := newTestRouter(t, &mockScreener{})
	req := httptest.NewRequest(http.MethodGet, "/v1/unknown", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got %q", ct)
	}
}

func TestRouter_RecoversPanic(t *testing.T) {
	sc := &mockScreener{screenFn: func(context.Context, *screeninguc.Request) (*screening.Result, error) {
		panic("unexpected")
	}}
	rr := postScreening(t, newTestRouter(t, sc), `{}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != CodeInternalError {
		t.Errorf("expected code %q, got %q", CodeInternalError, errResp.Code)
	}
}

func TestCreateScreening_EmbeddingTokensHeader(t *testing.T) {
	sc := &mockScreener{screenFn: func(ctx context.Context, _ *screeninguc.Request) (*screening.Result, error) {
		domain.UsageFromContext(ctx).AddTokens(9)
		domain.UsageFromContext(ctx).AddTokens(4)
		return screening.NewResult(), nil
	}}
	rr := postScreening(t, newTestRouter(t, sc), `{}`)

	if got := rr.Header().Get("X-Embedding-Tokens"); got != "13" {
		t.Errorf("expected X-Embedding-Tokens 13, got %q", got)
	}
}

func TestCreateScreening_NoEmbeddingNoHeader(t *testing.T) {
	rr := postScreening(t, newTestRouter(t, &mockScreener{}), `{}`)
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "" {
		t.Errorf("expected no header, got %q", got)
	}
}
