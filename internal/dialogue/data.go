// ABOUTME: Typed per-flow data carried in the conversation state
// ABOUTME: One struct per flow: registration, payment, project draft, project list/details

package dialogue

import (
	"github.com/2389/afrik-gateway/internal/backend"
	"github.com/2389/afrik-gateway/internal/conversation"
	"github.com/2389/afrik-gateway/internal/schedule"
)

type registrationData struct {
	reg backend.Registration
}

func (*registrationData) FlowTag() conversation.Flow { return conversation.FlowRegistration }

type paymentData struct {
	MerchantCode  string
	MerchantID    backend.ID
	MerchantName  string
	MerchantPhone string
	Object        string
	Amount        int64
	Source        string

	// PlanID ties the payment to a project installment.
	PlanID      backend.ID
	ProjectName string

	// Pending is set while a submitted payment awaits confirmation.
	Pending   bool
	Reference string
}

func (*paymentData) FlowTag() conversation.Flow { return conversation.FlowMerchantPayment }

func (d *paymentData) request(payer string) backend.PaymentRequest {
	return backend.PaymentRequest{
		MerchantCode:  d.MerchantCode,
		Amount:        d.Amount,
		Object:        d.Object,
		Source:        d.Source,
		PayerPhone:    payer,
		PaymentPlanID: d.PlanID,
	}
}

type projectDraft struct {
	MerchantCode string
	MerchantID   backend.ID
	MerchantName string
	Services     []backend.Service
	ServiceID    backend.ID
	Name         string
	Target       int64
	Installment  int64
	Frequency    schedule.Frequency
	Plan         []schedule.Installment
}

func (*projectDraft) FlowTag() conversation.Flow { return conversation.FlowCreateProject }

func (d *projectDraft) request() backend.ProjectRequest {
	req := backend.ProjectRequest{
		Name:              d.Name,
		MerchantCode:      d.MerchantCode,
		MerchantID:        d.MerchantID,
		ServiceID:         d.ServiceID,
		TargetAmount:      d.Target,
		InstallmentAmount: d.Installment,
		Frequency:         d.Frequency,
		EndDate:           schedule.EndDate(d.Plan),
		Schedule:          d.Plan,
	}
	if len(d.Plan) > 0 {
		req.StartDate = d.Plan[0].Date
	}
	return req
}

type projectsList struct {
	Projects []backend.Project
}

func (*projectsList) FlowTag() conversation.Flow { return conversation.FlowProjectsList }

type projectDetails struct {
	Project backend.Project
}

func (*projectDetails) FlowTag() conversation.Flow { return conversation.FlowProjectDetails }
