package billing

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

const (
	BillResource     = "bill"
	BillItemResource = "bill item"
)

// Status of a Bill: pending → {paid, overdue, cancelled}; overdue → paid; paid and cancelled are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusPending, StatusPaid, StatusOverdue, StatusCancelled}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusPaid:
		return "Paid"
	case StatusOverdue:
		return "Overdue"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

func (s Status) Color() string {
	switch s {
	case StatusPending:
		return "yellow"
	case StatusPaid:
		return "green"
	case StatusOverdue:
		return "red"
	}
	return "gray"
}

// IsOpen reports whether a bill in this status still accepts payments.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusOverdue
}

type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemPartial ItemStatus = "partial"
	ItemPaid    ItemStatus = "paid"
)

// LineItem is the tariff snapshot stored with the bill; it never changes after generation.
type LineItem struct {
	TariffID string          `json:"tariff_id"`
	Name     string          `json:"name"`
	Type     tariff.Type     `json:"type"`
	Amount   decimal.Decimal `json:"amount"`             // Quantity times the tariff amount
	Quantity int             `json:"quantity,omitempty"` // months billed for per-month tariffs, else 1
}

type Bill struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	StudentID      string          `json:"student_id"`
	AcademicYearID string          `json:"academic_year_id"`
	TermID         string          `json:"term_id,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Balance        decimal.Decimal `json:"balance"`
	Status         Status          `json:"status"`
	DueDate        time.Time       `json:"due_date"`
	IssueDate      time.Time       `json:"issue_date"`
	PaidDate       *time.Time      `json:"paid_date"`
	LineItems      []LineItem      `json:"line_items"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelledBy    string          `json:"cancelled_by,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at"` // UTC

	Items    []BillItem `json:"items"`
	Payments []Payment  `json:"payments,omitempty"`
}

// IsOverdueAt reports whether a pending bill has passed its due date on `today` with money still owed.
func (b Bill) IsOverdueAt(today time.Time) bool {
	return b.Status == StatusPending && b.DueDate.Before(core.Date(today)) && b.Balance.IsPositive()
}

// Item returns the bill's item by ID.
func (b Bill) Item(id string) (BillItem, bool) {
	for _, item := range b.Items {
		if item.ID == id {
			return item, true
		}
	}
	return BillItem{}, false
}

type BillItem struct {
	ID          string          `json:"id"`
	BillID      string          `json:"bill_id"`
	TariffID    string          `json:"tariff_id"`
	Position    int             `json:"position"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        tariff.Type     `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	// NetAmount is the item's share of the bill total, after discount & tax.
	NetAmount  decimal.Decimal `json:"net_amount"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Balance    decimal.Decimal `json:"balance"`
	Status     ItemStatus      `json:"status"`
	CreatedAt  time.Time       `json:"created_at"` // UTC
	UpdatedAt  time.Time       `json:"updated_at"` // UTC

	PaymentHistory []ItemPayment `json:"payment_history"`
}

// ItemPayment is the part of a Payment applied to one BillItem.
type ItemPayment struct {
	ID         string          `json:"id"`
	BillItemID string          `json:"bill_item_id"`
	PaymentID  string          `json:"payment_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	Reference  string          `json:"reference"`
}

// Payment is a receipt recorded against a Bill.
type Payment struct {
	ID         string          `json:"id"`
	BillID     string          `json:"bill_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference"`
	RecordedBy string          `json:"recorded_by,omitempty"`
	PaidAt     time.Time       `json:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"` // UTC

	Allocations []ItemPayment `json:"allocations"`
}

// Balance aggregates a student's non-cancelled bills.
type Balance struct {
	StudentID   string          `json:"student_id"`
	TotalBilled decimal.Decimal `json:"total_billed"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	TotalOwed   decimal.Decimal `json:"total_owed"`
	OpenBills   int             `json:"open_bills"`
	Currency    string          `json:"currency"`
}

// Counter accumulates the bills issued for a period.
type Counter struct {
	AcademicYearID string          `json:"academic_year_id"`
	TermID         string          `json:"term_id,omitempty"`
	BillsIssued    int             `json:"bills_issued"`
	AmountIssued   decimal.Decimal `json:"amount_issued"`
	UpdatedAt      time.Time       `json:"updated_at"` // UTC
}

// Scope selects the students to bill; exactly one field must be set.
type Scope struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	GradeID   string `json:"grade_id"`
}

func (s Scope) count() int {
	var n int
	for _, id := range []string{s.StudentID, s.ClassID, s.GradeID} {
		if id != "" {
			n++
		}
	}
	return n
}

type GenerateRequest struct {
	Scope
	AcademicYearID string              `json:"academic_year_id" validate:"required"`
	TermID         string              `json:"term_id"`
	Discount       decimal.Decimal     `json:"discount" validate:"gte=0"`
	TaxRate        decimal.NullDecimal `json:"tax_rate" validate:"omitempty,gte=0,lte=100"` // percent; defaults to the configured rate
	DueDate        time.Time           `json:"due_date"`
}

func (gr *GenerateRequest) Validate(validate *validator.Validate) error {
	gr.StudentID = core.CleanString(gr.StudentID)
	gr.ClassID = core.CleanString(gr.ClassID)
	gr.GradeID = core.CleanString(gr.GradeID)
	gr.AcademicYearID = core.CleanString(gr.AcademicYearID)
	gr.TermID = core.CleanString(gr.TermID)
	gr.Discount = gr.Discount.Round(2)
	gr.DueDate = core.Date(gr.DueDate)

	if err := validate.Struct(gr); err != nil {
		return err
	}
	if gr.Scope.count() != 1 {
		return core.NewValidationError(nil, core.FieldError{Field: "scope", Error: errScope})
	}
	return nil
}

type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	ItemID    string          `json:"item_id"` // optional allocation target
	Method    string          `json:"method" validate:"max=32"`
	Reference string          `json:"reference" validate:"max=128"`
	PaidAt    time.Time       `json:"paid_at"`
}

func (pr *PaymentRequest) Validate(validate *validator.Validate) error {
	pr.Amount = pr.Amount.Round(2)
	pr.ItemID = core.CleanString(pr.ItemID)
	pr.Method = core.CleanString(pr.Method, true /* lower */)
	pr.Reference = core.CleanString(pr.Reference)
	return validate.Struct(pr)
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

func (cr *CancelRequest) Validate(validate *validator.Validate) error {
	cr.Reason = core.CleanString(cr.Reason)
	return validate.Struct(cr)
}

type QueryFilter struct {
	StudentID      string `query:"student_id"`
	ClassID        string `query:"class_id"`
	AcademicYearID string `query:"academic_year_id"`
	TermID         string `query:"term_id"`
	Status         Status `query:"status"`
}
