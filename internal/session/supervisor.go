// ABOUTME: Supervisor owns the session table: init, status, stop, reconnect, restore, shutdown
// ABOUTME: Filters inbound traffic and hands accepted messages to the dialogue dispatcher

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/2389/afrik-gateway/internal/dedupe"
	"github.com/2389/afrik-gateway/internal/messaging"
	"github.com/2389/afrik-gateway/internal/store"
)

// Config bounds and tunes the supervisor.
type Config struct {
	MaxSessions    int
	SetupTimeout   time.Duration
	ReconnectBase  time.Duration
	ReconnectMax   time.Duration
	DedupeTTL      time.Duration
	DedupeCapacity int
}

// DefaultConfig returns production settings.
func DefaultConfig() Config {
	return Config{
		MaxSessions:    20,
		SetupTimeout:   time.Minute,
		ReconnectBase:  time.Second,
		ReconnectMax:   time.Minute,
		DedupeTTL:      dedupe.DefaultTTL,
		DedupeCapacity: dedupe.DefaultMaxSize,
	}
}

type instance struct {
	id          string
	status      Status
	pairing     string
	transport   Transport
	gen         uint64
	failures    int
	connectedAt *time.Time
	retry       *time.Timer
}

func (i *instance) info() Info {
	return Info{
		ID:          i.id,
		Status:      i.status,
		HasPairing:  i.pairing != "",
		ConnectedAt: i.connectedAt,
	}
}

// Supervisor manages concurrent protocol sessions.
type Supervisor struct {
	mu       sync.Mutex
	sessions map[string]*instance
	closed   bool
	// gen numbers connection attempts across all sessions, so a stale
	// attempt never matches a later session reusing the same id.
	gen uint64

	dialer  Dialer
	store   store.Store
	seen    *dedupe.Filter
	handler InboundHandler
	cfg     Config
	backoff Backoff
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor creates a supervisor. handler receives every accepted inbound message.
func NewSupervisor(dialer Dialer, st store.Store, handler InboundHandler, cfg Config, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = def.SetupTimeout
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = def.ReconnectBase
	}
	if cfg.ReconnectMax < cfg.ReconnectBase {
		cfg.ReconnectMax = max(def.ReconnectMax, cfg.ReconnectBase)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		sessions: make(map[string]*instance),
		dialer:   dialer,
		store:    st,
		seen:     dedupe.New(cfg.DedupeTTL, cfg.DedupeCapacity, time.Minute),
		handler:  handler,
		cfg:      cfg,
		backoff:  NewBackoff(cfg.ReconnectBase, cfg.ReconnectMax),
		logger:   logger.With("component", "session"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Init registers id and starts connection setup in the background.
func (s *Supervisor) Init(id string) (InitResult, error) {
	return s.start(id, store.EventInit)
}

func (s *Supervisor) start(id string, kind store.EventKind) (InitResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrShuttingDown
	}
	if inst, ok := s.sessions[id]; ok {
		status := inst.status
		s.mu.Unlock()
		if status == StatusReady {
			return 0, ErrAlreadyConnected
		}
		s.logger.Debug("init ignored, setup in progress", "session", id, "status", status)
		return InitInProgress, nil
	}
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %d sessions", ErrCapacityExceeded, s.cfg.MaxSessions)
	}
	s.gen++
	gen := s.gen
	s.sessions[id] = &instance{id: id, status: StatusInitializing, gen: gen}
	total := len(s.sessions)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("=== SESSION INIT ===", "session", id, "total_sessions", total)
	if err := s.store.SaveInstance(s.ctx, id); err != nil {
		s.logger.Warn("registering instance failed", "session", id, "error", err)
	}
	s.record(id, kind, "")

	go func() {
		defer s.wg.Done()
		s.connect(id, gen)
	}()
	return InitStarted, nil
}

// current returns the instance only if gen is still its live generation.
// Must be called with mu held.
func (s *Supervisor) current(id string, gen uint64) *instance {
	inst, ok := s.sessions[id]
	if !ok || inst.gen != gen {
		return nil
	}
	return inst
}

// connect dials and starts one generation of a session.
func (s *Supervisor) connect(id string, gen uint64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SetupTimeout)
	defer cancel()

	logger := s.logger.With("session", id, "generation", gen)
	t, err := s.dialer.Dial(ctx, id, func(ev Event) { s.handleEvent(id, gen, ev) })
	if err != nil {
		s.setupFailed(id, gen, err)
		return
	}

	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil || s.closed {
		_, live := s.sessions[id]
		stopped := !live && !s.closed
		s.mu.Unlock()
		logger.Debug("dropping transport of a superseded generation")
		t.Disconnect()
		// Stop purged before Dial recreated the credential files.
		if stopped {
			if err := s.dialer.Purge(id); err != nil {
				logger.Error("deleting credentials failed", "error", err)
			}
		}
		return
	}
	inst.transport = t
	s.mu.Unlock()

	if err := t.Connect(ctx); err != nil {
		logger.Warn("connect failed", "error", err)
		s.handleEvent(id, gen, Event{Kind: EventClosed, Err: err})
	}
}

func (s *Supervisor) setupFailed(id string, gen uint64, err error) {
	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.logger.Error("session setup failed", "session", id, "error", err)
	s.record(id, store.EventSetupFailed, err.Error())
	if err := s.store.UpdateInstanceStatus(s.ctx, id, "failed", err.Error()); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("recording setup failure failed", "session", id, "error", err)
	}
}

func (s *Supervisor) handleEvent(id string, gen uint64, ev Event) {
	switch ev.Kind {
	case EventPairing:
		s.onPairing(id, gen, ev.PairingCode)
	case EventOpen:
		s.onOpen(id, gen)
	case EventClosed:
		if ev.LoggedOut {
			s.onLoggedOut(id, gen)
		} else {
			s.onClosed(id, gen, ev.Err)
		}
	case EventMessage:
		s.onMessage(id, gen, ev.Message)
	}
}

func (s *Supervisor) onPairing(id string, gen uint64, code string) {
	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil {
		s.mu.Unlock()
		return
	}
	first := inst.pairing == ""
	inst.status = StatusAwaitingScan
	inst.pairing = code
	s.mu.Unlock()

	if first {
		s.logger.Info("pairing code available", "session", id)
		s.record(id, store.EventPairing, "")
		s.saveStatus(id, StatusAwaitingScan, "")
	}
}

func (s *Supervisor) onOpen(id string, gen uint64) {
	now := time.Now().UTC()

	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil {
		s.mu.Unlock()
		return
	}
	inst.status = StatusReady
	inst.pairing = ""
	inst.failures = 0
	inst.connectedAt = &now
	s.mu.Unlock()

	s.logger.Info("=== SESSION READY ===", "session", id)
	s.record(id, store.EventReady, "")
	s.saveStatus(id, StatusReady, "")
	if err := s.store.MarkConnected(s.ctx, id, now); err != nil {
		s.logger.Warn("recording connection time failed", "session", id, "error", err)
	}
}

// onLoggedOut purges a session the network unlinked. The id becomes free.
func (s *Supervisor) onLoggedOut(id string, gen uint64) {
	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	t := inst.transport
	s.mu.Unlock()

	s.logger.Warn("=== SESSION LOGGED OUT ===", "session", id)
	if t != nil {
		t.Disconnect()
	}
	s.purge(id, store.EventLoggedOut)
}

// onClosed keeps the session and schedules a reconnect with the same credentials.
func (s *Supervisor) onClosed(id string, gen uint64, cause error) {
	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil || s.closed {
		s.mu.Unlock()
		return
	}
	old := inst.transport
	inst.transport = nil
	inst.status = StatusDisconnected
	inst.pairing = ""
	delay := s.backoff.Delay(inst.failures)
	inst.failures++
	s.gen++
	inst.gen = s.gen
	next := inst.gen
	attempt := inst.failures
	inst.retry = time.AfterFunc(delay, func() { s.reconnect(id, next) })
	s.mu.Unlock()

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	s.logger.Warn("session closed, reconnecting",
		"session", id,
		"attempt", attempt,
		"delay", delay,
		"reason", detail,
	)
	if old != nil {
		old.Disconnect()
	}
	s.record(id, store.EventDisconnected, detail)
	s.saveStatus(id, StatusDisconnected, detail)
}

func (s *Supervisor) reconnect(id string, gen uint64) {
	s.mu.Lock()
	inst := s.current(id, gen)
	if inst == nil || s.closed {
		s.mu.Unlock()
		return
	}
	inst.retry = nil
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.connect(id, gen)
}

func (s *Supervisor) onMessage(id string, gen uint64, env messaging.Envelope) {
	if env.FromMe || env.Protocol || env.Chat == messaging.StatusBroadcast {
		return
	}

	s.mu.Lock()
	live := s.current(id, gen) != nil
	s.mu.Unlock()
	if !live {
		return
	}

	if s.seen.Seen(id, env.ID) {
		s.logger.Debug("dropping redelivered message", "session", id, "message_id", env.ID)
		return
	}
	s.handler(messaging.Inbound{
		SessionID: id,
		Envelope:  env,
		Outbound:  s.Outbound(id),
	})
}

// Outbound returns a send capability that resolves the session's live
// transport at send time, so replies survive reconnects.
func (s *Supervisor) Outbound(id string) messaging.Outbound {
	return &boundOutbound{s: s, id: id}
}

func (s *Supervisor) transport(id string) (Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if inst.transport == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, id)
	}
	return inst.transport, nil
}

type boundOutbound struct {
	s  *Supervisor
	id string
}

func (b *boundOutbound) SendText(ctx context.Context, to, text string) error {
	t, err := b.s.transport(b.id)
	if err != nil {
		return err
	}
	return t.SendText(ctx, to, text)
}

func (b *boundOutbound) SendContactCard(ctx context.Context, to, displayName, vcard string) error {
	t, err := b.s.transport(b.id)
	if err != nil {
		return err
	}
	return t.SendContactCard(ctx, to, displayName, vcard)
}

func (b *boundOutbound) SendPresence(ctx context.Context, to string, state messaging.Presence) error {
	t, err := b.s.transport(b.id)
	if err != nil {
		return err
	}
	return t.SendPresence(ctx, to, state)
}

// Status returns the projection of one session.
func (s *Supervisor) Status(id string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.sessions[id]
	if !ok {
		return Info{}, ErrNotFound
	}
	return inst.info(), nil
}

// List returns every session, ordered by id.
func (s *Supervisor) List() []Info {
	s.mu.Lock()
	out := make([]Info, 0, len(s.sessions))
	for _, inst := range s.sessions {
		out = append(out, inst.info())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PairingCode returns the pending pairing payload of id, empty when none.
func (s *Supervisor) PairingCode(id string) (string, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.sessions[id]
	if !ok {
		return "", "", ErrNotFound
	}
	return inst.pairing, inst.status, nil
}

// Stop logs id out, deletes its credentials and forgets it.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	s.mu.Lock()
	inst, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.sessions, id)
	if inst.retry != nil {
		inst.retry.Stop()
	}
	t := inst.transport
	s.mu.Unlock()

	if t != nil {
		if err := t.Logout(ctx); err != nil {
			s.logger.Warn("logout failed", "session", id, "error", err)
		}
		t.Disconnect()
	}
	s.purge(id, store.EventStopped)
	s.logger.Info("=== SESSION STOPPED ===", "session", id)
	return nil
}

func (s *Supervisor) purge(id string, kind store.EventKind) {
	if err := s.dialer.Purge(id); err != nil {
		s.logger.Error("deleting credentials failed", "session", id, "error", err)
	}
	if err := s.store.DeleteInstance(s.ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("unregistering instance failed", "session", id, "error", err)
	}
	s.seen.Forget(id)
	s.record(id, kind, "")
}

// RestoreAll re-initializes every registered instance. It returns how many
// were started.
func (s *Supervisor) RestoreAll(ctx context.Context) (int, error) {
	instances, err := s.store.ListInstances(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing instances: %w", err)
	}

	started := 0
	for _, inst := range instances {
		res, err := s.start(inst.ID, store.EventRestored)
		if err != nil {
			s.logger.Warn("restoring session failed", "session", inst.ID, "error", err)
			continue
		}
		if res == InitStarted {
			started++
		}
	}
	if started > 0 {
		s.logger.Info("restored sessions", "count", started)
	}
	return started, nil
}

// Shutdown disconnects every session without logging out, so credentials
// stay valid for the next start.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var transports []Transport
	for _, inst := range s.sessions {
		if inst.retry != nil {
			inst.retry.Stop()
		}
		if inst.transport != nil {
			transports = append(transports, inst.transport)
		}
	}
	s.sessions = make(map[string]*instance)
	s.mu.Unlock()

	s.cancel()
	for _, t := range transports {
		t.Disconnect()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.seen.Close()
	s.logger.Info("session supervisor stopped", "disconnected", len(transports))
	return err
}

func (s *Supervisor) record(id string, kind store.EventKind, detail string) {
	if err := s.store.AppendEvent(s.ctx, &store.Event{InstanceID: id, Kind: kind, Detail: detail}); err != nil {
		s.logger.Warn("recording session event failed", "session", id, "kind", kind, "error", err)
	}
}

func (s *Supervisor) saveStatus(id string, status Status, lastError string) {
	if err := s.store.UpdateInstanceStatus(s.ctx, id, string(status), lastError); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("recording session status failed", "session", id, "error", err)
	}
}
