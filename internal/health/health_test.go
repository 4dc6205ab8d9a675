package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/feihua/internal/health"
	"github.com/MrWong99/feihua/internal/resilience"
)

func doRequest(t *testing.T, h *health.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return rec, body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	rec, body := doRequest(t, health.New(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("body status = %v, want ok", body["status"])
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()

	h := health.New(
		health.Corpus(nil),
		health.Judge(resilience.NewBreaker("judge")),
	)
	rec, body := doRequest(t, h, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	checks := body["checks"].(map[string]any)
	if checks["corpus"] != "ok" || checks["judge"] != "ok" {
		t.Errorf("checks = %v, want all ok", checks)
	}
}

func TestReadyz_CorpusFailure(t *testing.T) {
	t.Parallel()

	h := health.New(health.Corpus(func(context.Context) error {
		return errors.New("connection refused")
	}))
	rec, body := doRequest(t, h, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if body["status"] != "fail" {
		t.Errorf("body status = %v, want fail", body["status"])
	}
}

func TestReadyz_OpenCircuitFailsReadiness(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("judge", resilience.WithTripAfter(1))
	_ = b.Do(func() error { return errors.New("backend down") })

	rec, _ := doRequest(t, health.New(health.Judge(b)), "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while circuit open", rec.Code)
	}
}
