package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// generation holds what is shared by the bills of one Generate call.
type generation struct {
	req       GenerateRequest
	period    academic.Period
	taxRate   decimal.Decimal
	issueDate time.Time
	dueDate   time.Time
	createdBy string
}

// Generate issues the bills of the period for the students in req's scope, in a single transaction.
// A single student fails with a DuplicateBillError when already billed, and with a
// NoApplicableTariffError when nothing applies. Class and grade scopes skip the students already
// billed and fail with a DuplicateBillError only when every student was skipped.
func (svc *Service) Generate(ctx context.Context, req GenerateRequest, createdBy string) ([]Bill, error) {
	if req.Scope.count() != 1 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "scope", Error: errScope})
	}

	now := svc.now().UTC()
	gen := generation{
		req:       req,
		taxRate:   svc.taxRate,
		issueDate: core.Date(now),
		createdBy: createdBy,
	}
	if req.TaxRate.Valid {
		gen.taxRate = req.TaxRate.Decimal
	}

	var (
		bills    []Bill
		students = make(map[string]school.Student)
	)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		gen.period, err = svc.calendar.CheckBillable(ctx, req.AcademicYearID, req.TermID, exec)
		if err != nil {
			return err
		}
		gen.dueDate = core.Date(req.DueDate)
		if gen.dueDate.IsZero() {
			start := gen.period.Start()
			if start.Before(gen.issueDate) {
				start = gen.issueDate
			}
			gen.dueDate = start.AddDate(0, 0, svc.conf.Billing.DueDays)
		}

		if req.StudentID != "" {
			bill, student, err := svc.generateForStudent(ctx, gen, exec)
			if err != nil {
				return err
			}
			bills = append(bills, bill)
			students[student.ID] = student
			return nil
		}

		var targets []school.Student
		if req.ClassID != "" {
			if _, err = svc.directory.GetClass(ctx, req.ClassID, exec); err != nil {
				return err
			}
			targets, err = svc.directory.QueryStudents(ctx, school.StudentFilter{ClassID: req.ClassID, Status: school.StatusActive}, exec)
		} else {
			if _, err = svc.directory.GetGrade(ctx, req.GradeID, exec); err != nil {
				return err
			}
			targets, err = svc.directory.QueryStudents(ctx, school.StudentFilter{GradeID: req.GradeID, Status: school.StatusActive}, exec)
		}
		if err != nil {
			return errors.Wrap(err, "querying students")
		}
		bills, err = svc.generateBatch(ctx, gen, targets, exec)
		for _, s := range targets {
			students[s.ID] = s
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.StudentID)
	}
	svc.invalidateBalances(ctx, ids...)
	svc.notifyIssued(gen.period, bills, students)
	return bills, nil
}

func (svc *Service) generateForStudent(ctx context.Context, gen generation, exec core.DBExecutor) (Bill, school.Student, error) {
	student, err := svc.directory.GetStudent(ctx, gen.req.StudentID, exec)
	if err != nil {
		return Bill{}, school.Student{}, err
	}
	if student.Status != school.StatusActive {
		return Bill{}, student, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: errStudentStatus})
	}
	if student.ClassID == "" {
		return Bill{}, student, &NoApplicableTariffError{StudentID: student.ID}
	}

	exists, err := svc.repo.ExistsLiveBill(ctx, student.ID, gen.period.Year.ID, gen.period.TermID(), exec)
	if err != nil {
		return Bill{}, student, errors.Wrap(err, "checking existing bills")
	}
	if exists {
		return Bill{}, student, &DuplicateBillError{
			StudentID:      student.ID,
			AcademicYearID: gen.period.Year.ID,
			TermID:         gen.period.TermID(),
		}
	}

	tariffs, err := svc.periodTariffs(ctx, student.ClassID, gen.period, exec)
	if err != nil {
		return Bill{}, student, err
	}
	if tariffs, err = svc.unbilledTariffs(ctx, student.ID, tariffs, exec); err != nil {
		return Bill{}, student, err
	}
	if len(tariffs) == 0 {
		return Bill{}, student, &NoApplicableTariffError{StudentID: student.ID, ClassID: student.ClassID}
	}

	bill, err := svc.issue(ctx, gen, student, tariffs, exec)
	return bill, student, err
}

func (svc *Service) generateBatch(ctx context.Context, gen generation, students []school.Student, exec core.DBExecutor) ([]Bill, error) {
	if len(students) == 0 {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "scope", Error: errNoTargets})
	}

	var (
		bills      []Bill
		duplicates int
		lastClass  string
		classTrfs  = make(map[string][]tariff.Tariff)
	)
	for _, student := range students {
		exists, err := svc.repo.ExistsLiveBill(ctx, student.ID, gen.period.Year.ID, gen.period.TermID(), exec)
		if err != nil {
			return nil, errors.Wrap(err, "checking existing bills")
		}
		if exists {
			duplicates++
			continue
		}

		tariffs, ok := classTrfs[student.ClassID]
		if !ok {
			if tariffs, err = svc.periodTariffs(ctx, student.ClassID, gen.period, exec); err != nil {
				return nil, err
			}
			if len(tariffs) == 0 {
				return nil, &NoApplicableTariffError{ClassID: student.ClassID}
			}
			classTrfs[student.ClassID] = tariffs
		}
		lastClass = student.ClassID

		if tariffs, err = svc.unbilledTariffs(ctx, student.ID, tariffs, exec); err != nil {
			return nil, err
		}
		if len(tariffs) == 0 {
			continue
		}

		bill, err := svc.issue(ctx, gen, student, tariffs, exec)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}

	if len(bills) == 0 {
		if duplicates > 0 {
			return nil, &DuplicateBillError{AcademicYearID: gen.period.Year.ID, TermID: gen.period.TermID()}
		}
		return nil, &NoApplicableTariffError{ClassID: lastClass}
	}
	return bills, nil
}

// periodTariffs returns the active tariffs of the class that are billed for the period.
func (svc *Service) periodTariffs(ctx context.Context, classID string, period academic.Period, exec core.DBExecutor) ([]tariff.Tariff, error) {
	tariffs, err := svc.tariffs.ActiveForClass(ctx, classID, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying class tariffs")
	}
	applicable := make([]tariff.Tariff, 0, len(tariffs))
	for _, t := range tariffs {
		if t.Frequency.AppliesTo(period.Term != nil, period.IsFirstTerm) {
			applicable = append(applicable, t)
		}
	}
	return applicable, nil
}

// unbilledTariffs drops the one-time tariffs the student was already billed.
func (svc *Service) unbilledTariffs(ctx context.Context, studentID string, tariffs []tariff.Tariff, exec core.DBExecutor) ([]tariff.Tariff, error) {
	var billed map[string]bool
	kept := make([]tariff.Tariff, 0, len(tariffs))
	for _, t := range tariffs {
		if t.Frequency == tariff.OneTime {
			if billed == nil {
				var err error
				if billed, err = svc.repo.BilledTariffIDs(ctx, studentID, exec); err != nil {
					return nil, errors.Wrap(err, "querying billed tariffs")
				}
			}
			if billed[t.ID] {
				continue
			}
		}
		kept = append(kept, t)
	}
	return kept, nil
}

func (svc *Service) issue(ctx context.Context, gen generation, student school.Student, tariffs []tariff.Tariff, exec core.DBExecutor) (Bill, error) {
	bill, err := buildBill(gen, student.ID, tariffs, svc.now().UTC())
	if err != nil {
		return Bill{}, err
	}

	seq, err := svc.repo.NextCounter(ctx, bill.AcademicYearID, bill.TermID, bill.TotalAmount, exec)
	if err != nil {
		return Bill{}, errors.Wrap(err, "bumping billing counter")
	}
	bill.Number = billNumber(gen.period, seq)

	bill, err = svc.repo.CreateBill(ctx, bill, exec)
	if err != nil {
		if IsDuplicateBill(err) {
			return Bill{}, err
		}
		return Bill{}, errors.Wrap(err, "creating bill")
	}
	return bill, nil
}

// billNumber formats the bill number as <start year>-<T<term sequence>|Y>-<seq>.
func billNumber(period academic.Period, seq int) string {
	term := "Y"
	if period.Term != nil {
		term = fmt.Sprintf("T%d", period.Term.Sequence)
	}
	return fmt.Sprintf("%d-%s-%05d", period.Year.StartDate.Year(), term, seq)
}

// buildBill snapshots the tariffs into a new bill and computes its amounts.
func buildBill(gen generation, studentID string, tariffs []tariff.Tariff, now time.Time) (Bill, error) {
	bill := Bill{
		StudentID:      studentID,
		AcademicYearID: gen.period.Year.ID,
		TermID:         gen.period.TermID(),
		Discount:       gen.req.Discount.Round(2),
		PaidAmount:     decimal.Zero,
		Status:         StatusPending,
		DueDate:        gen.dueDate,
		IssueDate:      gen.issueDate,
		LineItems:      make([]LineItem, 0, len(tariffs)),
		Items:          make([]BillItem, 0, len(tariffs)),
		CreatedBy:      gen.createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	months := gen.period.Months()
	subtotal := decimal.Zero
	for i, t := range tariffs {
		qty := t.Frequency.Occurrences(months)
		amount := t.Amount.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		subtotal = subtotal.Add(amount)
		bill.LineItems = append(bill.LineItems, LineItem{TariffID: t.ID, Name: t.Name, Type: t.Type, Amount: amount, Quantity: qty})
		bill.Items = append(bill.Items, BillItem{
			TariffID:    t.ID,
			Position:    i + 1,
			Name:        t.Name,
			Description: t.Description,
			Type:        t.Type,
			Amount:      amount,
			PaidAmount:  decimal.Zero,
			Status:      ItemPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if bill.Discount.GreaterThan(subtotal) {
		return Bill{}, core.NewValidationError(nil, core.FieldError{Field: "discount", Error: errDiscount})
	}

	taxable := subtotal.Sub(bill.Discount)
	bill.Subtotal = subtotal
	bill.Tax = taxable.Mul(gen.taxRate).Div(hundred).Round(2)
	bill.TotalAmount = taxable.Add(bill.Tax)
	bill.Balance = bill.TotalAmount
	spreadTotal(bill.Items, subtotal, bill.TotalAmount)

	if bill.TotalAmount.IsZero() {
		settle(&bill, gen.issueDate)
	}
	return bill, nil
}

// spreadTotal sets each item's share of the bill total, proportional to its amount.
// Shares are floored to the cent and the leftover cents go to the items with the largest
// remainders (ties by line position), so the shares add up to the total and none is negative.
func spreadTotal(items []BillItem, subtotal, total decimal.Decimal) {
	if len(items) == 0 {
		return
	}
	if subtotal.IsZero() || !total.IsPositive() {
		for i := range items {
			items[i].NetAmount = decimal.Zero
			items[i].Balance = decimal.Zero
		}
		return
	}

	fractions := make([]decimal.Decimal, len(items))
	order := make([]int, len(items))
	allotted := decimal.Zero
	for i := range items {
		exact := items[i].Amount.Mul(total).Div(subtotal)
		share := exact.Truncate(2)
		fractions[i] = exact.Sub(share)
		order[i] = i
		items[i].NetAmount = share
		allotted = allotted.Add(share)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fractions[order[a]].GreaterThan(fractions[order[b]])
	})

	leftover := total.Sub(allotted).Mul(hundred).IntPart()
	for n := int64(0); n < leftover; n++ {
		i := order[int(n)%len(order)]
		items[i].NetAmount = items[i].NetAmount.Add(cent)
	}
	for i := range items {
		items[i].Balance = items[i].NetAmount
	}
}

// settle marks a fully paid bill and its items as paid.
func settle(bill *Bill, paidOn time.Time) {
	bill.Status = StatusPaid
	bill.PaidDate = &paidOn
	for i := range bill.Items {
		if bill.Items[i].Balance.IsZero() {
			bill.Items[i].Status = ItemPaid
		}
	}
}
