// ABOUTME: Project flows: listing, details, installment payment, and project creation
// ABOUTME: Creation builds an installment schedule and submits it with the project

package dialogue

import (
	"fmt"
	"strings"

	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/format"
	"github.com/2389/afrik-gateway/internal/schedule"
)

func (e *Engine) showProjects(t *turn) error {
	projects, err := e.backend.Projects(t.ctx, t.user)
	if err != nil {
		t.logger.Warn("fetching projects failed", "error", err)
		return t.send(format.ProjectsUnavailable)
	}
	if len(projects) == 0 {
		return t.send(format.ProjectsList(nil))
	}
	t.st.Enter(conversation.FlowProjectsList, conversation.StepSelection, &projectsList{Projects: projects})
	return t.send(format.ProjectsList(projects))
}

func (e *Engine) handleProjectsList(t *turn, data *projectsList) error {
	i, ok := parseIndex(t.text, len(data.Projects))
	if !ok {
		return t.send(format.InvalidProject)
	}
	p := data.Projects[i]
	t.st.Enter(conversation.FlowProjectDetails, conversation.StepOptions, &projectDetails{Project: p})
	return t.send(format.ProjectDetails(p))
}

func (e *Engine) handleProjectDetails(t *turn, data *projectDetails) error {
	if t.text == "1" && !data.Project.Funded() {
		return e.startInstallmentPayment(t, data)
	}
	return e.showMainMenu(t, nil)
}

// startInstallmentPayment enters the payment flow prefilled from a project,
// skipping straight to the operator choice.
func (e *Engine) startInstallmentPayment(t *turn, data *projectDetails) error {
	p := data.Project
	if p.DueAmount() < 1 {
		return t.send(format.ProjectNothingDue)
	}
	m, err := e.backend.CheckMerchant(t.ctx, t.user, p.MerchantCode)
	if err != nil {
		t.logger.Warn("project merchant lookup failed", "project_id", p.ID, "merchant", p.MerchantCode, "error", err)
		return t.send(format.ProjectMerchantDown)
	}

	pay := &paymentData{
		MerchantCode:  p.MerchantCode,
		MerchantID:    m.ID,
		MerchantName:  m.CompanyName,
		MerchantPhone: m.MerchantPhone,
		Object:        "Échéance " + p.Name,
		Amount:        p.DueAmount(),
		PlanID:        p.ID,
		ProjectName:   p.Name,
	}
	t.st.Enter(conversation.FlowMerchantPayment, conversation.StepSource, pay)
	return t.send(fmt.Sprintf(format.InstallmentPaymentFm, p.Name, m.CompanyName, pay.Amount) + format.AskSource)
}

func (e *Engine) startProjectCreation(t *turn) error {
	t.st.Enter(conversation.FlowCreateProject, conversation.StepMerchantCode, &projectDraft{})
	return t.send(format.ProjectStart)
}

func (e *Engine) handleProjectCreation(t *turn, d *projectDraft) error {
	st := t.st
	switch st.Step {
	case conversation.StepMerchantCode:
		code := strings.TrimSpace(t.text)
		m, err := e.backend.CheckMerchant(t.ctx, t.user, code)
		if err != nil {
			t.logger.Info("merchant check failed", "code", code, "error", err)
			return t.send(format.InvalidMerchant)
		}
		d.MerchantCode = code
		d.MerchantID = m.ID
		d.MerchantName = m.CompanyName
		d.Services = m.Services
		if len(m.Services) > 0 {
			st.Advance(conversation.StepService)
			return t.send(format.ServicesList(m.CompanyName, m.Services))
		}
		st.Advance(conversation.StepName)
		return t.sendf(format.ProjectMerchantFm, m.CompanyName)

	case conversation.StepService:
		i, ok := parseIndex(t.text, len(d.Services))
		if !ok {
			return t.send(format.InvalidService)
		}
		d.ServiceID = d.Services[i].ID
		d.Name = d.Services[i].Name
		st.Advance(conversation.StepTarget)
		return t.send(format.AskProjectTarget)

	case conversation.StepName:
		d.Name = strings.TrimSpace(t.text)
		st.Advance(conversation.StepTarget)
		return t.send(format.AskProjectTarget)

	case conversation.StepTarget:
		target, ok := ParseAmount(t.text)
		if !ok {
			return t.send(format.InvalidTarget)
		}
		d.Target = target
		st.Advance(conversation.StepFrequency)
		return t.send(format.AskFrequency)

	case conversation.StepFrequency:
		f, ok := schedule.FromChoice(strings.TrimSpace(t.text))
		if !ok {
			return t.send(format.InvalidChoice)
		}
		d.Frequency = f
		st.Advance(conversation.StepInstallment)
		return t.send(format.AskInstallment)

	case conversation.StepInstallment:
		installment, ok := ParseAmount(t.text)
		if !ok {
			return t.send(format.InvalidAmount)
		}
		if installment > d.Target {
			return t.send(format.InstallmentTooBig)
		}
		if schedule.Count(d.Target, installment) > schedule.MaxInstallments {
			return t.sendf(format.InstallmentManyFm, schedule.MaxInstallments)
		}
		plan, err := schedule.Generate(d.Target, installment, e.now(), d.Frequency)
		if err != nil {
			return fmt.Errorf("generating schedule: %w", err)
		}
		d.Installment = installment
		d.Plan = plan
		st.Advance(conversation.StepConfirmation)
		return t.send(format.ProjectRecap(d.Name, d.MerchantName, d.Target, d.Installment, d.Frequency, d.Plan))

	case conversation.StepConfirmation:
		if t.text != "1" {
			st.Reset()
			return e.showMainMenu(t, nil)
		}
		if err := e.backend.CreateProject(t.ctx, t.user, d.request()); err != nil {
			t.logger.Error("project creation failed", "merchant", d.MerchantCode, "target", d.Target, "error", err)
			return t.send(format.ProjectFailed)
		}
		t.logger.Info("project created",
			"name", d.Name,
			"merchant", d.MerchantCode,
			"target", d.Target,
			"installments", len(d.Plan),
		)
		name := d.Name
		st.Reset()
		if err := t.sendf(format.ProjectCreatedFm, name); err != nil {
			return err
		}
		return e.showMainMenu(t, nil)
	}
	return e.showMainMenu(t, nil)
}
