// ABOUTME: Per-user conversation state with flow/step tags and typed flow data
// ABOUTME: Soft clear keeps consent and welcome-card flags; flows carry tagged data

package conversation

import "time"

// Flow names a multi-turn conversation stage. FlowNone means idle.
type Flow string

const (
	FlowNone            Flow = ""
	FlowWelcome         Flow = "welcome"
	FlowMainMenu        Flow = "main_menu"
	FlowRegistration    Flow = "registration"
	FlowMerchantPayment Flow = "merchant_payment"
	FlowCreateProject   Flow = "create_project"
	FlowProjectsList    Flow = "projects_list"
	FlowProjectDetails  Flow = "project_details"
	FlowSupport         Flow = "support"
)

// Step names a sub-stage within a flow.
type Step string

const (
	StepNone       Step = ""
	StepDisclaimer Step = "disclaimer"
	StepInit       Step = "init"
	StepSelection  Step = "selection"

	StepNom       Step = "nom"
	StepPrenom    Step = "prenom"
	StepTelephone Step = "telephone"
	StepWhatsapp  Step = "whatsapp"
	StepMTN       Step = "mtn"
	StepMoov      Step = "moov"
	StepCeltiis   Step = "celtiis"

	StepCode         Step = "code"
	StepObject       Step = "object"
	StepAmount       Step = "amount"
	StepSource       Step = "source"
	StepConfirmation Step = "confirmation"

	StepMerchantCode Step = "merchant_code"
	StepService      Step = "service"
	StepName         Step = "name"
	StepTarget       Step = "target"
	StepFrequency    Step = "frequency"
	StepInstallment  Step = "installment"

	StepOptions Step = "options"
	StepMenu    Step = "menu"
)

// FlowData is the per-flow payload accumulated across steps.
type FlowData interface {
	FlowTag() Flow
}

// State is one user's dialogue state.
type State struct {
	Flow Flow
	Step Step
	Data FlowData

	ConsentAccepted bool
	WelcomeCardSent bool

	// UserPhone is the phone of the authenticated account, used as payer.
	UserPhone string

	LastActivity time.Time
}

// Active reports whether a flow other than the main menu is running.
func (s *State) Active() bool {
	return s.Flow != FlowNone && s.Flow != FlowMainMenu
}

// Is reports whether the state is at the given flow and step.
func (s *State) Is(flow Flow, step Step) bool {
	return s.Flow == flow && s.Step == step
}

// Set moves to flow/step, keeping data only if it belongs to flow.
func (s *State) Set(flow Flow, step Step) {
	if flow == FlowNone {
		step = StepNone
	}
	s.Flow = flow
	s.Step = step
	if s.Data != nil && s.Data.FlowTag() != flow {
		s.Data = nil
	}
}

// Enter starts flow at step with fresh data. data may be nil.
func (s *State) Enter(flow Flow, step Step, data FlowData) {
	s.Set(flow, step)
	if data != nil && data.FlowTag() != flow {
		data = nil
	}
	s.Data = data
}

// Advance moves to another step of the current flow.
func (s *State) Advance(step Step) {
	if s.Flow == FlowNone {
		return
	}
	s.Step = step
}

// Reset is the soft clear: everything but the sticky flags goes.
func (s *State) Reset() {
	s.Flow = FlowNone
	s.Step = StepNone
	s.Data = nil
	s.UserPhone = ""
}
