// ABOUTME: Registration flow: identity, phone validation, optional operator numbers
// ABOUTME: Registers the account under the user's own WhatsApp id and opens the menu

package dialogue

import (
	"strings"

	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/format"
)

func (e *Engine) startRegistration(t *turn) error {
	t.st.Enter(conversation.FlowRegistration, conversation.StepNom, &registrationData{})
	return t.send(format.RegistrationStart)
}

func (e *Engine) handleRegistration(t *turn, data *registrationData) error {
	st := t.st
	switch st.Step {
	case conversation.StepNom:
		data.reg.Nom = strings.TrimSpace(t.text)
		st.Advance(conversation.StepPrenom)
		return t.send(format.AskPrenom)

	case conversation.StepPrenom:
		data.reg.Prenom = strings.TrimSpace(t.text)
		st.Advance(conversation.StepTelephone)
		return t.send(format.AskTelephone)

	case conversation.StepTelephone:
		tel, ok := NormalizePhone(t.text)
		if !ok {
			return t.send(format.InvalidTelephone)
		}
		exists, err := e.backend.CheckPhone(t.ctx, tel)
		if err != nil {
			t.logger.Warn("phone check failed", "error", err)
		}
		if exists {
			return t.send(format.TelephoneTaken)
		}
		data.reg.Telephone = tel
		st.Advance(conversation.StepWhatsapp)
		return t.send(format.AskWhatsapp)

	case conversation.StepWhatsapp:
		wa, ok := NormalizePhone(t.text)
		if !ok {
			return t.send(format.InvalidWhatsapp)
		}
		data.reg.WhatsappNum = wa
		st.Advance(conversation.StepMTN)
		return t.send(format.AskMTN)

	case conversation.StepMTN:
		data.reg.NumMTN = optional(t.text)
		st.Advance(conversation.StepMoov)
		return t.send(format.AskMoov)

	case conversation.StepMoov:
		data.reg.NumMoov = optional(t.text)
		st.Advance(conversation.StepCeltiis)
		return t.send(format.AskCeltiis)

	case conversation.StepCeltiis:
		data.reg.NumCeltiis = optional(t.text)
		return e.completeRegistration(t, data)
	}
	return e.showMainMenu(t, nil)
}

func (e *Engine) completeRegistration(t *turn, data *registrationData) error {
	reg := data.reg
	reg.Whatsapp = t.user

	user, err := e.backend.Register(t.ctx, reg)
	if err != nil {
		t.logger.Error("registration failed", "error", err)
		return t.sendf(format.RegistrationFailedFm, backendMessage(err))
	}

	t.logger.Info("user registered", "telephone", reg.Telephone)
	t.st.Reset()
	if err := t.sendf(format.RegistrationOKFm, user.Prenom); err != nil {
		return err
	}
	return e.showMainMenu(t, user)
}
