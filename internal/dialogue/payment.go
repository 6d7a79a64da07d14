// ABOUTME: Merchant payment flow: merchant check, object, amount, source, confirmation
// ABOUTME: Submits the payment and hands confirmation over to the status poller

package dialogue

import (
	"strings"

	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/format"
)

func (e *Engine) startPayment(t *turn) error {
	t.st.Enter(conversation.FlowMerchantPayment, conversation.StepCode, &paymentData{})
	return t.send(format.PaymentStart)
}

func (e *Engine) handlePayment(t *turn, data *paymentData) error {
	st := t.st
	switch st.Step {
	case conversation.StepCode:
		code := strings.TrimSpace(t.text)
		m, err := e.backend.CheckMerchant(t.ctx, t.user, code)
		if err != nil {
			t.logger.Info("merchant check failed", "code", code, "error", err)
			return t.send(format.InvalidMerchant)
		}
		data.MerchantCode = code
		data.MerchantID = m.ID
		data.MerchantName = m.CompanyName
		data.MerchantPhone = m.MerchantPhone
		st.Advance(conversation.StepObject)
		return t.sendf(format.MerchantValidFm, m.CompanyName)

	case conversation.StepObject:
		data.Object = t.text
		st.Advance(conversation.StepAmount)
		return t.send(format.AskAmount)

	case conversation.StepAmount:
		amount, ok := ParseAmount(t.text)
		if !ok {
			return t.send(format.InvalidAmount)
		}
		data.Amount = amount
		st.Advance(conversation.StepSource)
		return t.send(format.AskSource)

	case conversation.StepSource:
		source, ok := paymentSource(t.text)
		if !ok {
			return t.send(format.InvalidChoice)
		}
		data.Source = source
		st.Advance(conversation.StepConfirmation)
		return t.send(format.PaymentRecap(data.MerchantName, data.MerchantCode, data.Object, data.Amount, source))

	case conversation.StepConfirmation:
		if t.text != "1" {
			st.Reset()
			return e.showMainMenu(t, nil)
		}
		if data.Pending {
			return t.send(format.PaymentPending)
		}
		return e.submitPayment(t, data)
	}
	return e.showMainMenu(t, nil)
}

func (e *Engine) submitPayment(t *turn, data *paymentData) error {
	if data.MerchantPhone == "" {
		return t.send(format.NoMerchantPhone)
	}
	if err := t.send(format.PaymentProcessing); err != nil {
		return err
	}

	payer := t.st.UserPhone
	if payer == "" {
		payer = t.user
	}

	ref, err := e.backend.SubmitMerchantPayment(t.ctx, t.user, data.request(payer))
	if err != nil {
		t.logger.Error("payment initiation failed", "merchant", data.MerchantCode, "amount", data.Amount, "error", err)
		return t.sendf(format.PaymentInitFailedFm, backendMessage(err))
	}

	data.Pending = true
	data.Reference = ref
	t.logger.Info("payment initiated",
		"reference", ref,
		"merchant", data.MerchantCode,
		"amount", data.Amount,
		"source", data.Source,
		"plan_id", data.PlanID,
	)

	if err := t.sendf(format.PaymentValidateFm, data.Amount, payer); err != nil {
		return err
	}
	e.startPolling(t, data)
	return nil
}
