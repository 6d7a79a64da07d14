// ABOUTME: Wire types for the Afrikmoney backend REST contract
// ABOUTME: Users, merchants, projects, payments, and lenient numeric decoding

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/2389/afrik-gateway/internal/schedule"
)

// ID accepts either a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(string(b))
	return nil
}

// Amount is a whole FCFA amount. The backend sends decimals as numbers or
// as quoted strings ("5000.00").
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing amount %q: %w", s, err)
	}
	*a = Amount(math.Round(f))
	return nil
}

// User is a registered backend account.
type User struct {
	ID         ID     `json:"id"`
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	Telephone  string `json:"telephone"`
	Whatsapp   string `json:"whatsapp"`
	NumMTN     string `json:"num_mtn"`
	NumMoov    string `json:"num_moov"`
	NumCeltiis string `json:"num_celtiis"`
}

// Registration is the payload for POST /afrik/register.
// Whatsapp must be the normalized network id so later logins resolve.
type Registration struct {
	Nom         string  `json:"nom"`
	Prenom      string  `json:"prenom"`
	Telephone   string  `json:"telephone"`
	WhatsappNum string  `json:"whatsapp_num"`
	NumMTN      *string `json:"num_mtn"`
	NumMoov     *string `json:"num_moov"`
	NumCeltiis  *string `json:"num_celtiis"`
	Whatsapp    string  `json:"whatsapp"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Service is a sub-offering of a merchant a project can subscribe to.
type Service struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Merchant is the result of a merchant code check.
type Merchant struct {
	ID            ID        `json:"id"`
	CompanyName   string    `json:"company_name"`
	MerchantPhone string    `json:"merchant_phone"`
	Services      []Service `json:"services"`
}

// Project is a savings plan towards a merchant.
type Project struct {
	ID                ID     `json:"id"`
	Name              string `json:"name"`
	MerchantCode      string `json:"merchant_code"`
	MerchantName      string `json:"merchant_name"`
	TargetAmount      Amount `json:"target_amount"`
	CurrentAmount     Amount `json:"current_amount"`
	InstallmentAmount Amount `json:"installment_amount"`
	NextAmount        Amount `json:"next_amount"`
	NextPayment       string `json:"next_payment"`
	Frequency         string `json:"frequency"`
	Status            string `json:"status"`
}

// Funded reports whether the target has been reached.
func (p Project) Funded() bool {
	return p.TargetAmount > 0 && p.CurrentAmount >= p.TargetAmount
}

// Progress returns the funded percentage in [0, 100].
func (p Project) Progress() float64 {
	if p.TargetAmount <= 0 {
		return 0
	}
	pct := float64(p.CurrentAmount) / float64(p.TargetAmount) * 100
	return math.Min(math.Max(pct, 0), 100)
}

// DueAmount is the amount of the next installment, bounded by what is left.
func (p Project) DueAmount() int64 {
	due := int64(p.NextAmount)
	if due <= 0 {
		due = int64(p.InstallmentAmount)
	}
	if left := int64(p.TargetAmount - p.CurrentAmount); left > 0 && (due <= 0 || due > left) {
		due = left
	}
	return due
}

// ProjectRequest is the payload for POST /afrik/projects/create.
type ProjectRequest struct {
	Name              string                 `json:"name"`
	MerchantCode      string                 `json:"merchant_code"`
	MerchantID        ID                     `json:"merchant_id"`
	ServiceID         ID                     `json:"service_id,omitempty"`
	TargetAmount      int64                  `json:"target_amount"`
	InstallmentAmount int64                  `json:"installment_amount"`
	Frequency         schedule.Frequency     `json:"frequency"`
	StartDate         string                 `json:"start_date"`
	EndDate           string                 `json:"end_date"`
	Schedule          []schedule.Installment `json:"schedule"`
}

// PaymentRequest is the payload for POST /afrik/payments/merchant.
type PaymentRequest struct {
	MerchantCode  string `json:"merchant_code"`
	Amount        int64  `json:"amount"`
	Object        string `json:"object"`
	Source        string `json:"source"`
	PayerPhone    string `json:"payer_phone"`
	PaymentPlanID ID     `json:"payment_plan_id,omitempty"`
}

type paymentResponse struct {
	Reference string `json:"reference"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Payment statuses reported by the status endpoint.
const (
	StatusSuccess   = "SUCCESS"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Payout is the payload for POST /afrik/payout/test.
type Payout struct {
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	CompanyID   ID     `json:"company_id"`
	Note        string `json:"note"`
}

// Transaction is one entry of the payment history.
type Transaction struct {
	ID        ID     `json:"id"`
	Amount    Amount `json:"amount"`
	Note      string `json:"note"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}
