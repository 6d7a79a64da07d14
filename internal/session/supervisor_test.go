// ABOUTME: Tests for the session supervisor using fake dialers and transports
// ABOUTME: Covers init idempotence, logout purge, reconnect generations, inbound filtering, restore and shutdown

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/afrik-gateway/internal/messaging"
	"github.com/2389/afrik-gateway/internal/store"
)

type fakeTransport struct {
	id   string
	emit func(Event)

	mu          sync.Mutex
	connects    int
	disconnects int
	logouts     int
	sent        []string
	connectErr  error
}

func (t *fakeTransport) Connect(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connects++
	return t.connectErr
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects++
}

func (t *fakeTransport) Logout(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logouts++
	return nil
}

func (t *fakeTransport) SendText(_ context.Context, to, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, to+": "+text)
	return nil
}

func (t *fakeTransport) SendContactCard(context.Context, string, string, string) error { return nil }

func (t *fakeTransport) SendPresence(context.Context, string, messaging.Presence) error { return nil }

func (t *fakeTransport) counts() (connects, disconnects, logouts int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects, t.disconnects, t.logouts
}

type fakeDialer struct {
	mu          sync.Mutex
	dialErr     error
	connectErrs []error
	purged      []string
	dialed      chan *fakeTransport
	// hold, when set, blocks Dial until it is closed.
	hold chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeTransport, 32)}
}

func (d *fakeDialer) Dial(_ context.Context, id string, emit func(Event)) (Transport, error) {
	d.mu.Lock()
	hold := d.hold
	d.mu.Unlock()
	if hold != nil {
		<-hold
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	t := &fakeTransport{id: id, emit: emit}
	if len(d.connectErrs) > 0 {
		t.connectErr = d.connectErrs[0]
		d.connectErrs = d.connectErrs[1:]
	}
	d.dialed <- t
	return t, nil
}

func (d *fakeDialer) Purge(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purged = append(d.purged, id)
	return nil
}

func (d *fakeDialer) purgedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.purged...)
}

type fixture struct {
	sup     *Supervisor
	dialer  *fakeDialer
	store   *store.MockStore
	inbound chan messaging.Inbound
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		dialer:  newFakeDialer(),
		store:   store.NewMockStore(),
		inbound: make(chan messaging.Inbound, 16),
	}
	f.sup = NewSupervisor(f.dialer, f.store, func(in messaging.Inbound) { f.inbound <- in }, cfg, nil)
	f.sup.backoff = Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = f.sup.Shutdown(ctx)
	})
	return f
}

// next waits for the next dialed transport and for its Connect call.
func (f *fixture) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case tr := <-f.dialer.dialed:
		require.Eventually(t, func() bool {
			c, _, _ := tr.counts()
			return c == 1
		}, time.Second, time.Millisecond)
		return tr
	case <-time.After(time.Second):
		t.Fatal("no transport dialed")
		return nil
	}
}

func (f *fixture) ready(t *testing.T, id string) *fakeTransport {
	t.Helper()
	res, err := f.sup.Init(id)
	require.NoError(t, err)
	require.Equal(t, InitStarted, res)
	tr := f.next(t)
	tr.emit(Event{Kind: EventOpen})
	info, err := f.sup.Status(id)
	require.NoError(t, err)
	require.Equal(t, StatusReady, info.Status)
	return tr
}

func TestInit_PairingThenReady(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.sup.Init("shop-1")
	require.NoError(t, err)
	assert.Equal(t, InitStarted, res)
	tr := f.next(t)

	info, err := f.sup.Status("shop-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInitializing, info.Status)
	assert.False(t, info.HasPairing)

	tr.emit(Event{Kind: EventPairing, PairingCode: "2@abc"})
	tr.emit(Event{Kind: EventPairing, PairingCode: "2@def"})
	code, status, err := f.sup.PairingCode("shop-1")
	require.NoError(t, err)
	assert.Equal(t, "2@def", code)
	assert.Equal(t, StatusAwaitingScan, status)

	res, err = f.sup.Init("shop-1")
	require.NoError(t, err)
	assert.Equal(t, InitInProgress, res)

	tr.emit(Event{Kind: EventOpen})
	info, err = f.sup.Status("shop-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, info.Status)
	assert.False(t, info.HasPairing)
	assert.NotNil(t, info.ConnectedAt)

	_, err = f.sup.Init("shop-1")
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	assert.Equal(t, []store.EventKind{store.EventInit, store.EventPairing, store.EventReady}, f.store.Kinds("shop-1"))
	inst, err := f.store.GetInstance(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "ready", inst.LastStatus)
	assert.NotNil(t, inst.ConnectedAt)
}

func TestInit_Capacity(t *testing.T) {
	f := newFixture(t, Config{MaxSessions: 2})

	_, err := f.sup.Init("a-1")
	require.NoError(t, err)
	_, err = f.sup.Init("b-2")
	require.NoError(t, err)
	_, err = f.sup.Init("c-3")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Len(t, f.sup.List(), 2)
}

func TestLoggedOut_PurgesAndFreesID(t *testing.T) {
	f := newFixture(t, Config{})
	tr := f.ready(t, "shop-1")

	tr.emit(Event{Kind: EventClosed, LoggedOut: true})

	_, err := f.sup.Status("shop-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"shop-1"}, f.dialer.purgedIDs())
	_, err = f.store.GetInstance(context.Background(), "shop-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, f.store.Kinds("shop-1"), store.EventLoggedOut)

	_, disconnects, _ := tr.counts()
	assert.Equal(t, 1, disconnects)

	// The id is free again.
	res, err := f.sup.Init("shop-1")
	require.NoError(t, err)
	assert.Equal(t, InitStarted, res)
	f.next(t)
}

func TestClosed_ReconnectsWithNewGeneration(t *testing.T) {
	f := newFixture(t, Config{})
	old := f.ready(t, "shop-1")

	old.emit(Event{Kind: EventClosed, Err: errors.New("stream error")})
	info, err := f.sup.Status("shop-1")
	require.NoError(t, err)
	assert.Equal(t, StatusDisconnected, info.Status)

	fresh := f.next(t)
	_, disconnects, logouts := old.counts()
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, 0, logouts)

	// Events from the superseded connection are ignored.
	old.emit(Event{Kind: EventOpen})
	info, _ = f.sup.Status("shop-1")
	assert.Equal(t, StatusDisconnected, info.Status)

	fresh.emit(Event{Kind: EventOpen})
	info, _ = f.sup.Status("shop-1")
	assert.Equal(t, StatusReady, info.Status)
	assert.Empty(t, f.dialer.purgedIDs())

	assert.Equal(t,
		[]store.EventKind{store.EventInit, store.EventReady, store.EventDisconnected, store.EventReady},
		f.store.Kinds("shop-1"),
	)
}

func TestConnectError_Retries(t *testing.T) {
	f := newFixture(t, Config{})
	f.dialer.connectErrs = []error{errors.New("dial tcp: timeout"), errors.New("dial tcp: timeout")}

	_, err := f.sup.Init("shop-1")
	require.NoError(t, err)
	f.next(t)
	f.next(t)
	third := f.next(t)
	third.emit(Event{Kind: EventOpen})

	info, err := f.sup.Status("shop-1")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, info.Status)
}

func TestDialError_RemovesSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.dialer.dialErr = errors.New("opening credential store: disk full")

	_, err := f.sup.Init("shop-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := f.sup.Status("shop-1")
		return errors.Is(err, ErrNotFound)
	}, time.Second, time.Millisecond)
	assert.Contains(t, f.store.Kinds("shop-1"), store.EventSetupFailed)

	inst, err := f.store.GetInstance(context.Background(), "shop-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", inst.LastStatus)
	assert.Contains(t, inst.LastError, "disk full")
}

func TestStop(t *testing.T) {
	f := newFixture(t, Config{})
	tr := f.ready(t, "shop-1")

	require.NoError(t, f.sup.Stop(context.Background(), "shop-1"))
	_, disconnects, logouts := tr.counts()
	assert.Equal(t, 1, logouts)
	assert.Equal(t, 1, disconnects)
	assert.Equal(t, []string{"shop-1"}, f.dialer.purgedIDs())

	assert.ErrorIs(t, f.sup.Stop(context.Background(), "shop-1"), ErrNotFound)
	kinds := f.store.Kinds("shop-1")
	assert.Equal(t, store.EventStopped, kinds[len(kinds)-1])

	// A logout event racing the stop changes nothing.
	tr.emit(Event{Kind: EventClosed, LoggedOut: true})
	assert.Equal(t, []string{"shop-1"}, f.dialer.purgedIDs())
}

func TestStop_DuringDialPurgesLateCredentials(t *testing.T) {
	f := newFixture(t, Config{})
	hold := make(chan struct{})
	f.dialer.hold = hold

	_, err := f.sup.Init("shop-1")
	require.NoError(t, err)
	require.NoError(t, f.sup.Stop(context.Background(), "shop-1"))
	assert.Equal(t, []string{"shop-1"}, f.dialer.purgedIDs())

	close(hold)
	var tr *fakeTransport
	select {
	case tr = <-f.dialer.dialed:
	case <-time.After(time.Second):
		t.Fatal("dial never completed")
	}

	require.Eventually(t, func() bool {
		return len(f.dialer.purgedIDs()) == 2
	}, time.Second, time.Millisecond)
	connects, disconnects, logouts := tr.counts()
	assert.Zero(t, connects)
	assert.Equal(t, 1, disconnects)
	assert.Zero(t, logouts)
	assert.Equal(t, []string{"shop-1", "shop-1"}, f.dialer.purgedIDs())
}

func TestStop_DuringDialThenReinitKeepsCredentials(t *testing.T) {
	f := newFixture(t, Config{})
	hold := make(chan struct{})
	f.dialer.hold = hold

	_, err := f.sup.Init("shop-1")
	require.NoError(t, err)
	require.NoError(t, f.sup.Stop(context.Background(), "shop-1"))
	_, err = f.sup.Init("shop-1")
	require.NoError(t, err)

	close(hold)
	// Both dials finish; only the newer attempt connects.
	trs := []*fakeTransport{<-f.dialer.dialed, <-f.dialer.dialed}
	require.Eventually(t, func() bool {
		var connected, dropped int
		for _, tr := range trs {
			c, d, _ := tr.counts()
			if c == 1 && d == 0 {
				connected++
			}
			if c == 0 && d == 1 {
				dropped++
			}
		}
		return connected == 1 && dropped == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"shop-1"}, f.dialer.purgedIDs())

	info, err := f.sup.Status("shop-1")
	require.NoError(t, err)
	assert.Equal(t, StatusInitializing, info.Status)
}

func TestStop_UnknownHasNoSideEffects(t *testing.T) {
	f := newFixture(t, Config{})
	assert.ErrorIs(t, f.sup.Stop(context.Background(), "ghost"), ErrNotFound)
	assert.Empty(t, f.dialer.purgedIDs())
	assert.Empty(t, f.store.Kinds("ghost"))
}

func TestStop_CancelsPendingReconnect(t *testing.T) {
	f := newFixture(t, Config{})
	f.sup.backoff = Backoff{Base: time.Hour, Max: time.Hour}
	tr := f.ready(t, "shop-1")

	tr.emit(Event{Kind: EventClosed})
	require.NoError(t, f.sup.Stop(context.Background(), "shop-1"))

	// No transport is live, so nothing to log out.
	_, _, logouts := tr.counts()
	assert.Equal(t, 0, logouts)
	select {
	case <-f.dialer.dialed:
		t.Fatal("stopped session was redialed")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestInbound_Filtering(t *testing.T) {
	f := newFixture(t, Config{})
	tr := f.ready(t, "shop-1")

	chat := "22951000000@s.whatsapp.net"
	tr.emit(Event{Kind: EventMessage, Message: messaging.Envelope{ID: "1", Chat: chat, Text: "mine", FromMe: true}})
	tr.emit(Event{Kind: EventMessage, Message: messaging.Envelope{ID: "2", Chat: chat, Protocol: true}})
	tr.emit(Event{Kind: EventMessage, Message: messaging.Envelope{ID: "3", Chat: messaging.StatusBroadcast, Text: "story"}})
	tr.emit(Event{Kind: EventMessage, Message: messaging.Envelope{ID: "A", Chat: chat, Text: "Bonjour"}})
	tr.emit(Event{Kind: EventMessage, Message: messaging.Envelope{ID: "A", Chat: chat, Text: "Bonjour"}})
	tr.emit(Event{Kind: EventMessage, Message: messaging.Envelope{ID: "B", Chat: chat, Text: "2"}})

	require.Len(t, f.inbound, 2)
	first := <-f.inbound
	second := <-f.inbound
	assert.Equal(t, "shop-1", first.SessionID)
	assert.Equal(t, "Bonjour", first.Envelope.Text)
	assert.Equal(t, "2", second.Envelope.Text)

	require.NoError(t, first.Outbound.SendText(context.Background(), chat, "Menu"))
	tr.mu.Lock()
	assert.Equal(t, []string{chat + ": Menu"}, tr.sent)
	tr.mu.Unlock()
}

func TestOutbound_FollowsReconnect(t *testing.T) {
	f := newFixture(t, Config{})
	f.sup.backoff = Backoff{Base: 30 * time.Millisecond, Max: 30 * time.Millisecond}
	old := f.ready(t, "shop-1")
	out := f.sup.Outbound("shop-1")

	old.emit(Event{Kind: EventClosed})
	assert.ErrorIs(t, out.SendText(context.Background(), "x", "hi"), ErrNotConnected)

	fresh := f.next(t)
	fresh.emit(Event{Kind: EventOpen})
	require.NoError(t, out.SendText(context.Background(), "x", "hi"))
	fresh.mu.Lock()
	assert.Len(t, fresh.sent, 1)
	fresh.mu.Unlock()

	require.NoError(t, f.sup.Stop(context.Background(), "shop-1"))
	assert.ErrorIs(t, out.SendText(context.Background(), "x", "hi"), ErrNotFound)
}

func TestRestoreAll(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	require.NoError(t, f.store.SaveInstance(ctx, "shop-1"))
	require.NoError(t, f.store.SaveInstance(ctx, "shop-2"))

	n, err := f.sup.RestoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	f.next(t)
	f.next(t)

	list := f.sup.List()
	require.Len(t, list, 2)
	assert.Equal(t, "shop-1", list[0].ID)
	assert.Equal(t, "shop-2", list[1].ID)
	assert.Equal(t, []store.EventKind{store.EventRestored}, f.store.Kinds("shop-1"))
}

func TestShutdown_DisconnectsWithoutLogout(t *testing.T) {
	f := newFixture(t, Config{})
	a := f.ready(t, "shop-1")
	b := f.ready(t, "shop-2")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.sup.Shutdown(ctx))

	for _, tr := range []*fakeTransport{a, b} {
		_, disconnects, logouts := tr.counts()
		assert.Equal(t, 1, disconnects)
		assert.Equal(t, 0, logouts)
	}
	assert.Empty(t, f.dialer.purgedIDs())
	assert.Empty(t, f.sup.List())

	list, err := f.store.ListInstances(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.sup.Init("shop-3")
	assert.ErrorIs(t, err, ErrShuttingDown)
	require.NoError(t, f.sup.Shutdown(ctx))
}

func TestBackoff(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second}
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 10*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(100))

	j := NewBackoff(time.Second, 10*time.Second)
	for i := 0; i < 50; i++ {
		d := j.Delay(2)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}
