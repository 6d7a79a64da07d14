// ABOUTME: Deterministic installment schedule generation for project creation
// ABOUTME: Splits a target amount into dated installments by day/week/month/year

package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Frequency is the spacing unit between two installments.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	// DateLayout is the date format used in schedules sent to the backend.
	DateLayout = "2006-01-02"
	// MaxInstallments bounds the length of a plan.
	MaxInstallments = 1000
)

var (
	ErrInvalidAmount       = errors.New("amounts must be positive")
	ErrInvalidFrequency    = errors.New("unknown frequency")
	ErrTooManyInstallments = errors.New("too many installments")
)

// Installment is one dated payment of a plan.
type Installment struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Label returns the French display name of the frequency.
func (f Frequency) Label() string {
	switch f {
	case Daily:
		return "Quotidien"
	case Weekly:
		return "Hebdomadaire"
	case Monthly:
		return "Mensuel"
	case Yearly:
		return "Annuel"
	}
	return string(f)
}

// FromChoice maps the menu choice 1..4 to a frequency.
func FromChoice(choice string) (Frequency, bool) {
	switch choice {
	case "1":
		return Daily, true
	case "2":
		return Weekly, true
	case "3":
		return Monthly, true
	case "4":
		return Yearly, true
	}
	return "", false
}

// shift moves start forward by n units of f.
func shift(start time.Time, f Frequency, n int) time.Time {
	switch f {
	case Daily:
		return start.AddDate(0, 0, n)
	case Weekly:
		return start.AddDate(0, 0, 7*n)
	case Monthly:
		return addMonths(start, n)
	default:
		return addMonths(start, 12*n)
	}
}

// addMonths keeps the day of month, clamped to the last day of the target
// month: Jan 31 + 1 month is Feb 28 (or 29), not Mar 3.
func addMonths(start time.Time, n int) time.Time {
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, start.Location())
	last := first.AddDate(0, 1, -1).Day()
	h, mi, sec := start.Clock()
	return time.Date(first.Year(), first.Month(), min(d, last), h, mi, sec, start.Nanosecond(), start.Location())
}

// Count returns the number of installments needed to reach target.
func Count(target, installment int64) int64 {
	if target <= 0 || installment <= 0 {
		return 0
	}
	return (target + installment - 1) / installment
}

// Generate returns ceil(target/installment) installments, the first one due on start.
// Plans longer than MaxInstallments are refused.
func Generate(target, installment int64, start time.Time, f Frequency) ([]Installment, error) {
	if target <= 0 || installment <= 0 {
		return nil, ErrInvalidAmount
	}
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	n := Count(target, installment)
	if n > MaxInstallments {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyInstallments, n, MaxInstallments)
	}

	count := int(n)
	plan := make([]Installment, count)
	for i := range plan {
		plan[i] = Installment{
			Date:   shift(start, f, i).Format(DateLayout),
			Amount: installment,
		}
	}
	if rem := target % installment; rem != 0 {
		plan[count-1].Amount = rem
	}
	return plan, nil
}

// EndDate returns the date of the last installment, or "" for an empty plan.
func EndDate(plan []Installment) string {
	if len(plan) == 0 {
		return ""
	}
	return plan[len(plan)-1].Date
}

// Total sums the installment amounts.
func Total(plan []Installment) int64 {
	var sum int64
	for _, in := range plan {
		sum += in.Amount
	}
	return sum
}
