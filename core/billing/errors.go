package billing

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	errScope         = "exactly one of student_id, class_id or grade_id is required"
	errDiscount      = "discount cannot exceed the bill subtotal"
	errStudentStatus = "only active students can be billed"
	errNoTargets     = "no active student to bill"

	// ErrStaleBill is returned by Repository.UpdateBill when the bill changed since it was read.
	ErrStaleBill = errors.New("bill was modified concurrently")
)

// Error codes exposed to API clients.
const (
	CodeDuplicateBill          = "duplicate_bill"
	CodeNoApplicableTariff     = "no_applicable_tariff"
	CodeOverpayment            = "overpayment"
	CodeInvalidStateTransition = "invalid_state_transition"
)

// DuplicateBillError is returned when a live bill already exists for the student and period.
type DuplicateBillError struct {
	StudentID      string
	AcademicYearID string
	TermID         string
}

func (err DuplicateBillError) Error() string {
	period := err.AcademicYearID
	if err.TermID != "" {
		period += "/" + err.TermID
	}
	if err.StudentID == "" {
		return fmt.Sprintf("all the students are already billed for period %s", period)
	}
	return fmt.Sprintf("student %s is already billed for period %s", err.StudentID, period)
}

func (DuplicateBillError) Code() string { return CodeDuplicateBill }

// NoApplicableTariffError is returned when a student (or class) has nothing to bill for the period.
type NoApplicableTariffError struct {
	StudentID string
	ClassID   string
}

func (err NoApplicableTariffError) Error() string {
	switch {
	case err.StudentID != "" && err.ClassID == "":
		return fmt.Sprintf("student %s is not assigned to a class", err.StudentID)
	case err.StudentID != "":
		return fmt.Sprintf("no applicable tariff for student %s in class %s", err.StudentID, err.ClassID)
	}
	return fmt.Sprintf("no applicable tariff for class %s", err.ClassID)
}

func (NoApplicableTariffError) Code() string { return CodeNoApplicableTariff }

// OverpaymentError is returned when a payment exceeds the outstanding balance of its bill or target item.
type OverpaymentError struct {
	BillID  string
	ItemID  string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

func (err OverpaymentError) Error() string {
	target := "bill " + err.BillID
	if err.ItemID != "" {
		target = "bill item " + err.ItemID
	}
	return fmt.Sprintf("payment of %s exceeds the %s balance of %s", err.Amount.StringFixed(2), target, err.Balance.StringFixed(2))
}

func (OverpaymentError) Code() string { return CodeOverpayment }

// InvalidStateTransitionError is returned when an operation is not allowed in the bill's current status.
type InvalidStateTransitionError struct {
	BillID string
	From   Status
	To     Status
	Reason string
}

func (err InvalidStateTransitionError) Error() string {
	msg := fmt.Sprintf("bill %s cannot go from %s to %s", err.BillID, err.From, err.To)
	if err.Reason != "" {
		msg += ": " + err.Reason
	}
	return msg
}

func (InvalidStateTransitionError) Code() string { return CodeInvalidStateTransition }

func IsDuplicateBill(err error) bool {
	_, ok := errors.Cause(err).(*DuplicateBillError)
	return ok
}

func IsNoApplicableTariff(err error) bool {
	_, ok := errors.Cause(err).(*NoApplicableTariffError)
	return ok
}

func IsOverpayment(err error) bool {
	_, ok := errors.Cause(err).(*OverpaymentError)
	return ok
}

func IsInvalidStateTransition(err error) bool {
	_, ok := errors.Cause(err).(*InvalidStateTransitionError)
	return ok
}
