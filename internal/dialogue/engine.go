// ABOUTME: Dialogue engine entry point: pre-routing, main menu, and flow dispatch
// ABOUTME: Drives per-user conversation state against the payment backend

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/2389/afrik-gateway/internal/backend"
	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/format"
	"github.com/2389/afrik-gateway/internal/messaging"
	"github.com/2389/afrik-gateway/internal/sequencer"
)

// Backend is the subset of the backend client the engine drives.
type Backend interface {
	Authenticate(ctx context.Context, userID string) (*backend.User, error)
	Register(ctx context.Context, reg backend.Registration) (*backend.User, error)
	CheckPhone(ctx context.Context, phone string) (bool, error)
	CheckMerchant(ctx context.Context, userID, code string) (*backend.Merchant, error)
	Projects(ctx context.Context, userID string) ([]backend.Project, error)
	CreateProject(ctx context.Context, userID string, req backend.ProjectRequest) error
	SubmitMerchantPayment(ctx context.Context, userID string, req backend.PaymentRequest) (string, error)
	PaymentStatus(ctx context.Context, userID, reference string) (string, error)
	SettlePayout(ctx context.Context, userID string, p backend.Payout) error
	History(ctx context.Context, userID string) ([]backend.Transaction, error)
}

// Scheduler enqueues work on a user's sequenced chain.
type Scheduler interface {
	Enqueue(key string, task sequencer.Task) <-chan error
}

// Config tunes engine timings.
type Config struct {
	PresenceDelay       time.Duration
	CardPause           time.Duration
	PollInterval        time.Duration
	PollMaxAttempts     int
	PollCallTimeout     time.Duration
	ProjectRefreshDelay time.Duration
}

// DefaultConfig returns production timings.
func DefaultConfig() Config {
	return Config{
		PresenceDelay:       time.Second,
		CardPause:           500 * time.Millisecond,
		PollInterval:        3 * time.Second,
		PollMaxAttempts:     20,
		PollCallTimeout:     30 * time.Second,
		ProjectRefreshDelay: 2 * time.Second,
	}
}

// Engine is the dialogue state machine.
type Engine struct {
	store   *conversation.Store
	backend Backend
	sched   Scheduler
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	closed atomic.Bool
	mu     sync.Mutex
	polls  map[*poll]*time.Timer
}

// NewEngine wires an engine. sched must be the same sequencer that feeds Handle.
func NewEngine(store *conversation.Store, be Backend, sched Scheduler, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 20
	}
	if cfg.PollCallTimeout <= 0 {
		cfg.PollCallTimeout = 30 * time.Second
	}
	return &Engine{
		store:   store,
		backend: be,
		sched:   sched,
		cfg:     cfg,
		logger:  logger.With("component", "dialogue"),
		now:     time.Now,
		polls:   make(map[*poll]*time.Timer),
	}
}

// turn is the context of one handled message.
type turn struct {
	ctx    context.Context
	out    messaging.Outbound
	to     string
	user   string
	text   string
	st     *conversation.State
	logger *slog.Logger
}

func (t *turn) send(text string) error {
	if err := t.out.SendText(t.ctx, t.to, text); err != nil {
		return fmt.Errorf("sending text: %w", err)
	}
	return nil
}

func (t *turn) sendf(format string, args ...any) error {
	return t.send(fmt.Sprintf(format, args...))
}

// Handle processes one inbound message. It must run on the user's sequenced chain.
func (e *Engine) Handle(ctx context.Context, in messaging.Inbound) (err error) {
	env := in.Envelope
	if env.Chat == "" || env.Chat == messaging.StatusBroadcast || !env.HasContent() {
		return nil
	}

	user := messaging.UserID(env.Chat)
	t := &turn{
		ctx:  ctx,
		out:  in.Outbound,
		to:   env.Chat,
		user: user,
		text: env.Body(),
		logger: e.logger.With(
			"trace_id", uuid.NewString(),
			"session", in.SessionID,
			"user", user,
		),
	}

	e.presence(t)

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("dialogue panicked", "panic", r, "stack", string(debug.Stack()))
			err = t.send(format.GenericError)
		}
	}()

	t.st = e.store.Get(user)
	if rerr := e.route(t); rerr != nil {
		t.logger.Error("dialogue failed", "flow", t.st.Flow, "step", t.st.Step, "error", rerr)
		return t.send(format.GenericError)
	}
	return nil
}

// presence shows a short typing indicator. Failures are ignored.
func (e *Engine) presence(t *turn) {
	if err := t.out.SendPresence(t.ctx, t.to, messaging.PresenceComposing); err != nil {
		t.logger.Warn("presence update failed", "error", err)
		return
	}
	_ = pause(t.ctx, e.cfg.PresenceDelay)
	if err := t.out.SendPresence(t.ctx, t.to, messaging.PresencePaused); err != nil {
		t.logger.Warn("presence update failed", "error", err)
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) route(t *turn) error {
	st := t.st

	if st.Flow == conversation.FlowNone && !st.WelcomeCardSent {
		if err := t.out.SendContactCard(t.ctx, t.to, format.ContactName, format.ContactVCard); err != nil {
			return fmt.Errorf("sending contact card: %w", err)
		}
		st.WelcomeCardSent = true
		if err := t.send(format.ContactPrompt); err != nil {
			return err
		}
		_ = pause(t.ctx, e.cfg.CardPause)
	}

	if st.Is(conversation.FlowWelcome, conversation.StepDisclaimer) {
		switch t.text {
		case "1":
			st.ConsentAccepted = true
			return e.showMainMenu(t, nil)
		case "0":
			e.store.HardClear(t.user)
			return t.send(format.Farewell)
		}
		return t.send(format.DisclaimerRepeat)
	}

	if t.text == "0" && st.Flow != conversation.FlowMainMenu && !skipsOptionalField(st) {
		st.Reset()
		return e.showMainMenu(t, nil)
	}

	if st.Flow == conversation.FlowNone || st.Flow == conversation.FlowMainMenu {
		return e.mainMenu(t)
	}

	switch data := st.Data.(type) {
	case *registrationData:
		return e.handleRegistration(t, data)
	case *paymentData:
		return e.handlePayment(t, data)
	case *projectDraft:
		return e.handleProjectCreation(t, data)
	case *projectsList:
		return e.handleProjectsList(t, data)
	case *projectDetails:
		return e.handleProjectDetails(t, data)
	}

	if st.Flow == conversation.FlowSupport {
		return e.handleSupport(t)
	}
	return e.showMainMenu(t, nil)
}

// skipsOptionalField reports whether "0" answers an optional registration field.
func skipsOptionalField(st *conversation.State) bool {
	if st.Flow != conversation.FlowRegistration {
		return false
	}
	switch st.Step {
	case conversation.StepMTN, conversation.StepMoov, conversation.StepCeltiis:
		return true
	}
	return false
}

// authenticate returns nil when the user has no account or the check failed.
func (e *Engine) authenticate(t *turn) *backend.User {
	user, err := e.backend.Authenticate(t.ctx, t.user)
	if err != nil {
		if errors.Is(err, backend.ErrUserNotFound) {
			t.logger.Debug("user has no account")
		} else {
			t.logger.Warn("authentication check failed", "error", err)
		}
		return nil
	}
	return user
}

func (e *Engine) mainMenu(t *turn) error {
	user := e.authenticate(t)
	if user == nil {
		if t.st.ConsentAccepted && t.text == "1" {
			return e.startRegistration(t)
		}
		return e.showWelcome(t)
	}

	t.st.UserPhone = user.Telephone

	switch t.text {
	case "1":
		return e.showProjects(t)
	case "2":
		return e.startPayment(t)
	case "3":
		return e.showHistory(t)
	case "4":
		return t.send(format.Profile(*user))
	case "5":
		return e.startProjectCreation(t)
	case "6":
		return e.showSupport(t)
	}
	return e.showMainMenu(t, user)
}

// showWelcome shows the disclaimer until accepted, then the signup invite.
func (e *Engine) showWelcome(t *turn) error {
	if !t.st.ConsentAccepted {
		t.st.Enter(conversation.FlowWelcome, conversation.StepDisclaimer, nil)
		return t.send(format.Disclaimer)
	}
	t.st.Set(conversation.FlowMainMenu, conversation.StepInit)
	return t.send(format.Welcome)
}

// showMainMenu renders the menu for an account, falling back to the welcome
// screen when the user cannot be authenticated.
func (e *Engine) showMainMenu(t *turn, user *backend.User) error {
	if user == nil {
		user = e.authenticate(t)
	}
	if user == nil {
		return e.showWelcome(t)
	}

	t.st.Reset()
	t.st.Set(conversation.FlowMainMenu, conversation.StepSelection)
	t.st.UserPhone = user.Telephone
	return t.send(format.MainMenu(*user))
}

func (e *Engine) showSupport(t *turn) error {
	t.st.Enter(conversation.FlowSupport, conversation.StepMenu, nil)
	return t.send(format.SupportMenu())
}

func (e *Engine) handleSupport(t *turn) error {
	switch t.text {
	case "1":
		return t.send(format.SupportFAQ)
	case "2":
		return t.send(format.SupportContact)
	case "3":
		return t.send(format.SupportComplaint)
	}
	return e.showMainMenu(t, nil)
}

func (e *Engine) showHistory(t *turn) error {
	txs, err := e.backend.History(t.ctx, t.user)
	if err != nil {
		t.logger.Warn("fetching history failed", "error", err)
		return t.send(format.HistoryUnavailable)
	}
	return t.send(format.History(txs))
}

// Close stops pending payment polls.
func (e *Engine) Close() {
	e.closed.Store(true)
	e.mu.Lock()
	defer e.mu.Unlock()
	for p, timer := range e.polls {
		timer.Stop()
		delete(e.polls, p)
	}
}

// ActivePolls returns the number of payments awaiting confirmation.
func (e *Engine) ActivePolls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.polls)
}

// backendMessage extracts a user-presentable reason from a backend error.
func backendMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "Erreur inconnue"
}
