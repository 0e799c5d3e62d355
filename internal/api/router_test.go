package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/victorivanov/huddle/internal/auth"
)

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, 0, http.MethodGet, "/health", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestRouter_RejectsBadToken(t *testing.T) {
	s := newTestServer(t, nil, 0)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestRouter_UnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, 0, http.MethodGet, "/nowhere", "")
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestRouter_RejectsForeignSecret(t *testing.T) {
	s := newTestServer(t, nil, 0)
	token, err := auth.NewTokenService("someone-else").GenerateAccessToken(testOwnerID)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestRouter_RateLimitPerUser(t *testing.T) {
	s := newTestServer(t, newTestRedis(t), 2)

	for range 2 {
		rec := s.do(t, testOwnerID, http.MethodGet, "/api/v1/notifications", "")
		expectStatus(t, rec, http.StatusOK)
	}
	rec := s.do(t, testOwnerID, http.MethodGet, "/api/v1/notifications", "")
	expectError(t, rec, http.StatusTooManyRequests, "RATE_LIMITED")

	// Buckets are per user.
	rec = s.do(t, testMemberID, http.MethodGet, "/api/v1/notifications", "")
	expectStatus(t, rec, http.StatusOK)

	// And per route.
	rec = s.do(t, testOwnerID, http.MethodGet, "/api/v1/channels/500/messages", "")
	expectStatus(t, rec, http.StatusOK)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "huddle_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	e := echo.New()
	SetupRouter(e, &Dependencies{
		Messages:      &MessageHandler{},
		Standups:      &StandupHandler{},
		Reactions:     &ReactionHandler{},
		Notifications: &NotificationHandler{},
		TokenService:  auth.NewTokenService("secret"),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "huddle_test_total 1") {
		t.Errorf("metric missing from output:\n%s", rec.Body.String())
	}
}

func TestRouter_NoMetricsWhenDisabled(t *testing.T) {
	s := newTestServer(t, nil, 0)
	rec := s.do(t, 0, http.MethodGet, "/metrics", "")
	if rec.Code == http.StatusOK {
		t.Fatal("expected /metrics to be absent")
	}
}
