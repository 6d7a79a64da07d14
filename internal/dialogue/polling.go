// ABOUTME: Timer-driven payment status polling outside the user's sequenced chain
// ABOUTME: Terminal outcomes are enqueued back on the user's chain for settlement and replies

package dialogue

import (
	"context"
	"log/slog"
	"time"

	"github.com/2389/afrik-gateway/internal/backend"
	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/format"
	"github.com/2389/afrik-gateway/internal/messaging"
)

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeTimeout
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeFailed:
		return "failed"
	default:
		return "timeout"
	}
}

// poll tracks one payment awaiting confirmation.
type poll struct {
	user     string
	to       string
	out      messaging.Outbound
	data     *paymentData
	attempts int
	logger   *slog.Logger
}

func (e *Engine) startPolling(t *turn, data *paymentData) {
	p := &poll{
		user:   t.user,
		to:     t.to,
		out:    t.out,
		data:   data,
		logger: t.logger.With("reference", data.Reference),
	}
	e.schedulePoll(p)
}

func (e *Engine) schedulePoll(p *poll) {
	if e.closed.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.polls[p] = time.AfterFunc(e.cfg.PollInterval, func() { e.tick(p) })
}

func (e *Engine) tick(p *poll) {
	if e.closed.Load() {
		return
	}
	if p.attempts >= e.cfg.PollMaxAttempts {
		e.finish(p, outcomeTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PollCallTimeout)
	status, err := e.backend.PaymentStatus(ctx, p.user, p.data.Reference)
	cancel()

	switch {
	case err != nil:
		p.logger.Warn("payment status poll failed", "attempt", p.attempts+1, "error", err)
	case status == backend.StatusSuccess || status == backend.StatusCompleted:
		e.finish(p, outcomeSuccess)
		return
	case status == backend.StatusFailed:
		e.finish(p, outcomeFailed)
		return
	default:
		p.logger.Debug("payment still pending", "attempt", p.attempts+1, "status", status)
	}

	p.attempts++
	e.schedulePoll(p)
}

func (e *Engine) finish(p *poll, o outcome) {
	e.mu.Lock()
	delete(e.polls, p)
	e.mu.Unlock()

	p.logger.Info("payment confirmation finished", "outcome", o.String(), "attempts", p.attempts)
	e.sched.Enqueue(p.user, func(ctx context.Context) error {
		return e.completePayment(ctx, p, o)
	})
}

// completePayment runs on the user's chain once polling reached an outcome.
// State only moves if the user is still on this payment.
func (e *Engine) completePayment(ctx context.Context, p *poll, o outcome) error {
	st := e.store.Get(p.user)
	t := &turn{ctx: ctx, out: p.out, to: p.to, user: p.user, st: st, logger: p.logger}
	current := st.Data == conversation.FlowData(p.data)
	d := p.data
	d.Pending = false

	switch o {
	case outcomeSuccess:
		payout := backend.Payout{
			Amount:      d.Amount,
			PhoneNumber: d.MerchantPhone,
			CompanyID:   d.MerchantID,
			Note:        d.Object,
		}
		if err := e.backend.SettlePayout(ctx, p.user, payout); err != nil {
			p.logger.Error("payout settlement failed", "error", err)
			if err := t.sendf(format.SettlementFailedFm, d.MerchantName); err != nil {
				return err
			}
		} else if err := t.sendf(format.PaymentSucceededFm, d.MerchantName); err != nil {
			return err
		}
		if !current {
			return nil
		}
		st.Reset()
		if d.PlanID != "" {
			return e.refreshProject(t, d.PlanID)
		}
		return e.showMainMenu(t, nil)

	case outcomeFailed:
		return t.send(withRetryHint(format.PaymentFailed, current))
	default:
		return t.send(withRetryHint(format.PaymentTimedOut, current))
	}
}

func withRetryHint(msg string, current bool) string {
	if current {
		return msg + format.RetryHint
	}
	return msg
}

// refreshProject re-displays a project after one of its installments was paid.
func (e *Engine) refreshProject(t *turn, planID backend.ID) error {
	if err := pause(t.ctx, e.cfg.ProjectRefreshDelay); err != nil {
		return err
	}
	projects, err := e.backend.Projects(t.ctx, t.user)
	if err != nil {
		t.logger.Warn("refreshing projects failed", "error", err)
		return e.showMainMenu(t, nil)
	}
	for _, p := range projects {
		if p.ID == planID {
			t.st.Enter(conversation.FlowProjectDetails, conversation.StepOptions, &projectDetails{Project: p})
			return t.send(format.ProjectDetails(p))
		}
	}
	return e.showMainMenu(t, nil)
}
