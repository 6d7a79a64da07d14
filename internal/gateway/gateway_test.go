// ABOUTME: Tests for gateway assembly, restore on start, and graceful shutdown
// ABOUTME: Uses a fake session dialer and the in-memory store

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/afrik-gateway/internal/config"
	"github.com/2389/afrik-gateway/internal/messaging"
	"github.com/2389/afrik-gateway/internal/session"
	"github.com/2389/afrik-gateway/internal/store"
)

const testAPIKey = "zap-test-key"

type fakeTransport struct {
	emit func(session.Event)
	code string
}

func (t *fakeTransport) Connect(context.Context) error {
	if t.code != "" {
		t.emit(session.Event{Kind: session.EventPairing, PairingCode: t.code})
	}
	return nil
}
func (t *fakeTransport) Disconnect()                  {}
func (t *fakeTransport) Logout(context.Context) error { return nil }
func (t *fakeTransport) SendText(context.Context, string, string) error {
	return nil
}
func (t *fakeTransport) SendContactCard(context.Context, string, string, string) error {
	return nil
}
func (t *fakeTransport) SendPresence(context.Context, string, messaging.Presence) error {
	return nil
}

type fakeDialer struct {
	mu     sync.Mutex
	emits  map[string]func(session.Event)
	purged []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{emits: make(map[string]func(session.Event))}
}

func (d *fakeDialer) Dial(_ context.Context, id string, emit func(session.Event)) (session.Transport, error) {
	d.mu.Lock()
	d.emits[id] = emit
	d.mu.Unlock()
	return &fakeTransport{emit: emit, code: "2@pairing-" + id}, nil
}

func (d *fakeDialer) Purge(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purged = append(d.purged, id)
	return nil
}

// open reports the session as connected.
func (d *fakeDialer) open(t *testing.T, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.emits[id] != nil
	}, time.Second, 5*time.Millisecond)
	d.mu.Lock()
	emit := d.emits[id]
	d.mu.Unlock()
	emit(session.Event{Kind: session.EventOpen})
}

func testConfig(backendURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Backend.BaseURL = backendURL
	cfg.Auth.APIKey = testAPIKey
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.ApplyDefaults()
	cfg.Dialogue.PresenceDelay = time.Millisecond
	cfg.Dialogue.CardPause = time.Millisecond
	return cfg
}

type fixture struct {
	gw     *Gateway
	store  *store.MockStore
	dialer *fakeDialer
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	if cfg == nil {
		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		t.Cleanup(backend.Close)
		cfg = testConfig(backend.URL)
	}
	st := store.NewMockStore()
	dialer := newFakeDialer()
	gw, err := assemble(cfg, st, dialer, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = gw.Shutdown(ctx)
	})
	return &fixture{gw: gw, store: st, dialer: dialer}
}

// do sends an authenticated request through the full handler chain.
func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	f.gw.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestAssemble_RejectsWeakJWTSecret(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Auth.JWTSecret = "short"
	_, err := assemble(cfg, store.NewMockStore(), newFakeDialer(), slog.Default())
	assert.Error(t, err)
}

func TestServe_RestoresAndShutsDown(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.store.SaveInstance(context.Background(), "shop_1"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.gw.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		_, err := f.gw.supervisor.Status("shop_1")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	assert.Contains(t, f.store.Kinds("shop_1"), store.EventRestored)
	assert.Empty(t, f.gw.supervisor.List(), "shutdown forgets live sessions")

	inst, err := f.store.GetInstance(context.Background(), "shop_1")
	require.NoError(t, err, "shutdown keeps the registration for the next start")
	assert.Equal(t, "shop_1", inst.ID)
}

func TestSweepConversations(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.config.Dialogue.SweepInterval = 5 * time.Millisecond
	f.gw.config.Dialogue.IdleExpiry = time.Nanosecond

	f.gw.conversations.Get("22951000000")
	require.Equal(t, 1, f.gw.conversations.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.gw.sweepConversations(ctx)

	assert.Eventually(t, func() bool { return f.gw.conversations.Len() == 0 }, time.Second, 5*time.Millisecond)
}
