// ABOUTME: Tests for the management API handlers
// ABOUTME: Covers auth, id validation, init/qr/status/stop/events flows, ping and rate limits

package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/afrik-gateway/internal/auth"
	"github.com/2389/afrik-gateway/internal/session"
	"github.com/2389/afrik-gateway/internal/store"
)

func TestHealth_Public(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.startedAt = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	f.gw.now = func() time.Time { return f.gw.startedAt.Add(90 * time.Second) }

	rec := httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UP", body.Status)
	assert.Equal(t, "2026-01-01T09:01:30Z", body.Timestamp)
	assert.InDelta(t, 90, body.Uptime, 0.001)
}

func TestAPI_RequiresCredentials(t *testing.T) {
	f := newFixture(t, nil)
	for _, path := range []string{"/ping-api", "/instances/status", "/instances/qr/shop_1", "/instances/events/shop_1"} {
		rec := httptest.NewRecorder()
		f.gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAPI_BearerToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()
	cfg := testConfig(backend.URL)
	cfg.Auth.JWTSecret = "afrik-gateway-test-secret-32byte"
	f := newFixture(t, cfg)

	v, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	require.NoError(t, err)
	token, err := v.Generate("ops", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/instances/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_InvalidInstanceID(t *testing.T) {
	f := newFixture(t, nil)
	for _, id := range []string{"ab", "bad.id", "x%20y", "a123456789a123456789a123456789a123456789a123456789z"} {
		rec, body := f.do(t, http.MethodPost, "/instances/init/"+id)
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.Equal(t, "Invalid Instance ID format", body["error"], id)
	}
}

func TestAPI_InstanceLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodGet, "/instances/qr/shop_1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Instance not found", body["error"])

	rec, body = f.do(t, http.MethodPost, "/instances/init/shop_1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "L'initialisation de l'instance shop_1 a demarre.", body["message"])

	// pairing code appears once the transport reports it
	require.Eventually(t, func() bool {
		code, _, err := f.gw.supervisor.PairingCode("shop_1")
		return err == nil && code != ""
	}, time.Second, 5*time.Millisecond)
	rec, body = f.do(t, http.MethodGet, "/instances/qr/shop_1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2@pairing-shop_1", body["code"])

	rec, body = f.do(t, http.MethodPost, "/instances/init/shop_1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Instance shop_1 is already initializing.", body["message"])

	f.dialer.open(t, "shop_1")
	require.Eventually(t, func() bool {
		info, err := f.gw.supervisor.Status("shop_1")
		return err == nil && info.Status == session.StatusReady
	}, time.Second, 5*time.Millisecond)

	rec, body = f.do(t, http.MethodGet, "/instances/qr/shop_1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Instance is already connected", body["message"])

	rec, body = f.do(t, http.MethodPost, "/instances/init/shop_1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Instance shop_1 is already connected.", body["message"])

	rec, body = f.do(t, http.MethodGet, "/instances/status/shop_1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, false, body["hasPendingPairing"])

	rec, body = f.do(t, http.MethodPost, "/instances/stop/shop_1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Instance shop_1 stopped", body["message"])

	rec, _ = f.do(t, http.MethodPost, "/instances/stop/shop_1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/instances/status/shop_1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Contains(t, f.dialer.purged, "shop_1")

	// the lifecycle log outlives the session
	req := httptest.NewRequest(http.MethodGet, "/instances/events/shop_1?limit=10", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec = httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.NotEmpty(t, events)
	assert.Equal(t, string(store.EventStopped), events[0].Kind)
	assert.Equal(t, string(store.EventInit), events[len(events)-1].Kind)
}

func TestAPI_StatusList(t *testing.T) {
	f := newFixture(t, nil)
	for _, id := range []string{"shop_2", "shop_1"} {
		rec, _ := f.do(t, http.MethodPost, "/instances/init/"+id)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/instances/status", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "shop_1", list[0].ID)
	assert.Equal(t, "shop_2", list[1].ID)
}

func TestAPI_Capacity(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Sessions.MaxSessions = 1
	f := newFixture(t, cfg)

	rec, _ := f.do(t, http.MethodPost, "/instances/init/shop_1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/instances/init/shop_2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Maximum instance limit (1) reached.", body["message"])
}

func TestAPI_EventsBadLimit(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodGet, "/instances/events/shop_1?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "limit")
}

func TestAPI_PingBackend(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "00000000", r.URL.Query().Get("telephone"))
			w.WriteHeader(http.StatusNotFound)
		}))
		defer backend.Close()
		f := newFixture(t, testConfig(backend.URL))

		rec, body := f.do(t, http.MethodGet, "/ping-api")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "accessible", body["status"])
		assert.EqualValues(t, 404, body["code"])
	})

	t.Run("server error", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer backend.Close()
		f := newFixture(t, testConfig(backend.URL))

		rec, body := f.do(t, http.MethodGet, "/ping-api")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "unreachable", body["status"])
	})

	t.Run("down", func(t *testing.T) {
		backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := backend.URL
		backend.Close()
		f := newFixture(t, testConfig(url))

		rec, body := f.do(t, http.MethodGet, "/ping-api")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotEmpty(t, body["message"])
	})
}

func TestAPI_InstanceRateLimit(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.RateLimit.InstanceRequests = 2
	f := newFixture(t, cfg)

	for _, id := range []string{"shop_1", "shop_2"} {
		rec, _ := f.do(t, http.MethodPost, "/instances/init/"+id)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := f.do(t, http.MethodPost, "/instances/init/shop_3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many instance operations, please slow down.", body["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// read endpoints only count against the global budget
	rec, _ = f.do(t, http.MethodGet, "/instances/status/shop_1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_GlobalRateLimit(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.RateLimit.GlobalRequests = 3
	f := newFixture(t, cfg)

	for range 3 {
		rec := httptest.NewRecorder()
		f.gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
