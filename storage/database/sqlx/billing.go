package sqlxrepos

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

const billPeriodConstraint = "bill_period_uniq"

var (
	billColumns = []string{
		"id", "number", "student_id", "academic_year_id", "term_id",
		"subtotal", "discount", "tax", "total_amount", "paid_amount", "balance", "status",
		"due_date", "issue_date", "paid_date", "line_items", "created_by",
		"cancelled_at", "cancelled_by", "cancel_reason", "version", "created_at", "updated_at",
	}
	billItemColumns = []string{
		"id", "bill_id", "tariff_id", "position", "name", "description", "type",
		"amount", "net_amount", "paid_amount", "balance", "status", "created_at", "updated_at",
	}
	paymentColumns     = []string{"id", "bill_id", "amount", "method", "reference", "recorded_by", "paid_at", "created_at"}
	itemPaymentColumns = []string{"id", "bill_item_id", "payment_id", "amount", "reference", "paid_at"}

	billOrderings = map[string]string{
		"number":       "number",
		"due_date":     "due_date",
		"issue_date":   "issue_date",
		"total_amount": "total_amount",
		"balance":      "balance",
		"status":       "status",
	}
)

type billRow struct {
	ID             string          `db:"id"`
	Number         string          `db:"number"`
	StudentID      string          `db:"student_id"`
	AcademicYearID string          `db:"academic_year_id"`
	TermID         null.String     `db:"term_id"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	Discount       decimal.Decimal `db:"discount"`
	Tax            decimal.Decimal `db:"tax"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	PaidAmount     decimal.Decimal `db:"paid_amount"`
	Balance        decimal.Decimal `db:"balance"`
	Status         string          `db:"status"`
	DueDate        time.Time       `db:"due_date"`
	IssueDate      time.Time       `db:"issue_date"`
	PaidDate       null.Time       `db:"paid_date"`
	LineItems      types.JSONText  `db:"line_items"`
	CreatedBy      null.String     `db:"created_by"`
	CancelledAt    null.Time       `db:"cancelled_at"`
	CancelledBy    null.String     `db:"cancelled_by"`
	CancelReason   string          `db:"cancel_reason"`
	Version        int             `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type billItemRow struct {
	ID          string          `db:"id"`
	BillID      string          `db:"bill_id"`
	TariffID    string          `db:"tariff_id"`
	Position    int             `db:"position"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Type        string          `db:"type"`
	Amount      decimal.Decimal `db:"amount"`
	NetAmount   decimal.Decimal `db:"net_amount"`
	PaidAmount  decimal.Decimal `db:"paid_amount"`
	Balance     decimal.Decimal `db:"balance"`
	Status      string          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

type paymentRow struct {
	ID         string          `db:"id"`
	BillID     string          `db:"bill_id"`
	Amount     decimal.Decimal `db:"amount"`
	Method     string          `db:"method"`
	Reference  string          `db:"reference"`
	RecordedBy null.String     `db:"recorded_by"`
	PaidAt     time.Time       `db:"paid_at"`
	CreatedAt  time.Time       `db:"created_at"`
}

type itemPaymentRow struct {
	ID         string          `db:"id"`
	BillItemID string          `db:"bill_item_id"`
	PaymentID  string          `db:"payment_id"`
	Amount     decimal.Decimal `db:"amount"`
	PaidAt     time.Time       `db:"paid_at"`
	Reference  string          `db:"reference"`
}

type counterRow struct {
	AcademicYearID string          `db:"academic_year_id"`
	TermKey        string          `db:"term_key"`
	BillsIssued    int             `db:"bills_issued"`
	AmountIssued   decimal.Decimal `db:"amount_issued"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type totalsRow struct {
	TotalBilled decimal.Decimal `db:"total_billed"`
	TotalPaid   decimal.Decimal `db:"total_paid"`
	TotalOwed   decimal.Decimal `db:"total_owed"`
	OpenBills   int             `db:"open_bills"`
}

type billingRepository struct {
	repository
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(exec core.DBExecutor) *billingRepository {
	return &billingRepository{repository{exec: exec}}
}

// nullUUID stores actor IDs; anything that is not a user ID (e.g. "system") is stored as NULL.
func nullUUID(id string) null.String {
	return null.NewString(id, isUUID(id))
}

func nullTimePtr(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// termKey is the counter key of a period; annual bills use the nil UUID.
func termKey(termID string) string {
	if termID == "" {
		return uuid.Nil.String()
	}
	return termID
}

// termParam matches a NULL term_id for annual bills.
func termParam(termID string) interface{} {
	if termID == "" {
		return nil
	}
	return termID
}

func (repo billingRepository) toRow(bill billing.Bill) (billRow, error) {
	lineItems := bill.LineItems
	if lineItems == nil {
		lineItems = []billing.LineItem{}
	}
	data, err := json.Marshal(lineItems)
	if err != nil {
		return billRow{}, errors.Wrap(err, "encoding line items")
	}
	return billRow{
		ID:             bill.ID,
		Number:         bill.Number,
		StudentID:      bill.StudentID,
		AcademicYearID: bill.AcademicYearID,
		TermID:         nullString(bill.TermID),
		Subtotal:       bill.Subtotal,
		Discount:       bill.Discount,
		Tax:            bill.Tax,
		TotalAmount:    bill.TotalAmount,
		PaidAmount:     bill.PaidAmount,
		Balance:        bill.Balance,
		Status:         string(bill.Status),
		DueDate:        bill.DueDate,
		IssueDate:      bill.IssueDate.UTC(),
		PaidDate:       nullTimePtr(bill.PaidDate),
		LineItems:      types.JSONText(data),
		CreatedBy:      nullUUID(bill.CreatedBy),
		CancelledAt:    nullTimePtr(bill.CancelledAt),
		CancelledBy:    nullUUID(bill.CancelledBy),
		CancelReason:   bill.CancelReason,
		Version:        bill.Version,
		CreatedAt:      bill.CreatedAt.UTC(),
		UpdatedAt:      bill.UpdatedAt.UTC(),
	}, nil
}

func (repo billingRepository) fromRow(row billRow) (billing.Bill, error) {
	var lineItems []billing.LineItem
	if err := row.LineItems.Unmarshal(&lineItems); err != nil {
		return billing.Bill{}, errors.Wrapf(err, "decoding line items of bill %s", row.Number)
	}
	return billing.Bill{
		ID:             row.ID,
		Number:         row.Number,
		StudentID:      row.StudentID,
		AcademicYearID: row.AcademicYearID,
		TermID:         row.TermID.String,
		Subtotal:       row.Subtotal,
		Discount:       row.Discount,
		Tax:            row.Tax,
		TotalAmount:    row.TotalAmount,
		PaidAmount:     row.PaidAmount,
		Balance:        row.Balance,
		Status:         billing.Status(row.Status),
		DueDate:        core.Date(row.DueDate),
		IssueDate:      row.IssueDate.UTC(),
		PaidDate:       timePtr(row.PaidDate),
		LineItems:      lineItems,
		CreatedBy:      row.CreatedBy.String,
		CancelledAt:    timePtr(row.CancelledAt),
		CancelledBy:    row.CancelledBy.String,
		CancelReason:   row.CancelReason,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}, nil
}

func (repo billingRepository) fromRows(rows []billRow) ([]billing.Bill, error) {
	bills := make([]billing.Bill, 0, len(rows))
	for _, row := range rows {
		b, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, nil
}

func (repo billingRepository) CreateBill(ctx context.Context, bill billing.Bill, exec ...core.DBExecutor) (billing.Bill, error) {
	ex := repo.getExec(exec)
	bill.ID = uuid.New().String()
	bill.Version = 1

	row, err := repo.toRow(bill)
	if err != nil {
		return billing.Bill{}, err
	}
	query := psql.Insert("bill").Columns(billColumns...).Values(
		row.ID, row.Number, row.StudentID, row.AcademicYearID, row.TermID,
		row.Subtotal, row.Discount, row.Tax, row.TotalAmount, row.PaidAmount, row.Balance, row.Status,
		row.DueDate, row.IssueDate, row.PaidDate, row.LineItems, row.CreatedBy,
		row.CancelledAt, row.CancelledBy, row.CancelReason, row.Version, row.CreatedAt, row.UpdatedAt,
	)
	if _, err = repo.execute(ctx, ex, query); err != nil {
		if isUniqueViolation(err, billPeriodConstraint) {
			return billing.Bill{}, &billing.DuplicateBillError{
				StudentID:      bill.StudentID,
				AcademicYearID: bill.AcademicYearID,
				TermID:         bill.TermID,
			}
		}
		return billing.Bill{}, errors.Wrap(err, "inserting bill")
	}

	if len(bill.Items) > 0 {
		items := psql.Insert("bill_item").Columns(billItemColumns...)
		for i := range bill.Items {
			item := &bill.Items[i]
			item.ID = uuid.New().String()
			item.BillID = bill.ID
			item.PaymentHistory = nil
			items = items.Values(
				item.ID, item.BillID, item.TariffID, item.Position, item.Name, item.Description, string(item.Type),
				item.Amount, item.NetAmount, item.PaidAmount, item.Balance, string(item.Status),
				item.CreatedAt.UTC(), item.UpdatedAt.UTC(),
			)
		}
		if _, err = repo.execute(ctx, ex, items); err != nil {
			return billing.Bill{}, errors.Wrap(err, "inserting bill items")
		}
	}
	bill.Payments = nil
	return bill, nil
}

// load fetches the bill's items, their payment history and its payments.
func (repo billingRepository) load(ctx context.Context, exec core.DBExecutor, bill billing.Bill) (billing.Bill, error) {
	var itemRows []billItemRow
	query := psql.Select(billItemColumns...).From("bill_item").
		Where(sq.Eq{"bill_id": bill.ID}).
		OrderBy("position ASC")
	if err := repo.selectAll(ctx, exec, &itemRows, query); err != nil {
		return billing.Bill{}, errors.Wrap(err, "selecting bill items")
	}

	ipCols := make([]string, 0, len(itemPaymentColumns))
	for _, col := range itemPaymentColumns {
		ipCols = append(ipCols, "ip."+col)
	}
	var ipRows []itemPaymentRow
	query = psql.Select(ipCols...).From("bill_item_payment ip").
		Join("bill_item bi ON bi.id = ip.bill_item_id").
		Where(sq.Eq{"bi.bill_id": bill.ID}).
		OrderBy("ip.paid_at ASC", "ip.id ASC")
	if err := repo.selectAll(ctx, exec, &ipRows, query); err != nil {
		return billing.Bill{}, errors.Wrap(err, "selecting item payments")
	}

	var paymentRows []paymentRow
	query = psql.Select(paymentColumns...).From("payment").
		Where(sq.Eq{"bill_id": bill.ID}).
		OrderBy("created_at ASC", "id ASC")
	if err := repo.selectAll(ctx, exec, &paymentRows, query); err != nil {
		return billing.Bill{}, errors.Wrap(err, "selecting payments")
	}

	history := make(map[string][]billing.ItemPayment)
	allocations := make(map[string][]billing.ItemPayment)
	for _, r := range ipRows {
		ip := billing.ItemPayment(r)
		ip.PaidAt = ip.PaidAt.UTC()
		history[ip.BillItemID] = append(history[ip.BillItemID], ip)
		allocations[ip.PaymentID] = append(allocations[ip.PaymentID], ip)
	}

	bill.Items = make([]billing.BillItem, 0, len(itemRows))
	for _, r := range itemRows {
		bill.Items = append(bill.Items, billing.BillItem{
			ID:             r.ID,
			BillID:         r.BillID,
			TariffID:       r.TariffID,
			Position:       r.Position,
			Name:           r.Name,
			Description:    r.Description,
			Type:           tariff.Type(r.Type),
			Amount:         r.Amount,
			NetAmount:      r.NetAmount,
			PaidAmount:     r.PaidAmount,
			Balance:        r.Balance,
			Status:         billing.ItemStatus(r.Status),
			CreatedAt:      r.CreatedAt.UTC(),
			UpdatedAt:      r.UpdatedAt.UTC(),
			PaymentHistory: history[r.ID],
		})
	}

	bill.Payments = make([]billing.Payment, 0, len(paymentRows))
	for _, r := range paymentRows {
		bill.Payments = append(bill.Payments, billing.Payment{
			ID:          r.ID,
			BillID:      r.BillID,
			Amount:      r.Amount,
			Method:      r.Method,
			Reference:   r.Reference,
			RecordedBy:  r.RecordedBy.String,
			PaidAt:      r.PaidAt.UTC(),
			CreatedAt:   r.CreatedAt.UTC(),
			Allocations: allocations[r.ID],
		})
	}
	return bill, nil
}

func (repo billingRepository) GetBill(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (billing.Bill, error) {
	if !isUUID(id) {
		return billing.Bill{}, core.NewNotFoundError(billing.BillResource, id)
	}
	ex := repo.getExec(exec)
	query := psql.Select(billColumns...).From("bill").Where(sq.Eq{"id": id, "deleted_at": nil})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	var row billRow
	if err := repo.selectOne(ctx, ex, &row, query); err != nil {
		return billing.Bill{}, trapNoRowsErr(err, billing.BillResource, id, "selecting bill")
	}
	bill, err := repo.fromRow(row)
	if err != nil {
		return billing.Bill{}, err
	}
	return repo.load(ctx, ex, bill)
}

func (repo billingRepository) QueryBills(ctx context.Context, filter *billing.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.Bill, error) {
	query := psql.Select(billColumns...).From("bill").Where(sq.Eq{"deleted_at": nil})

	if filter != nil {
		for _, id := range []string{filter.StudentID, filter.ClassID, filter.AcademicYearID, filter.TermID} {
			if id != "" && !isUUID(id) {
				return []billing.Bill{}, nil
			}
		}
		if filter.StudentID != "" {
			query = query.Where(sq.Eq{"student_id": filter.StudentID})
		}
		// bills of the students currently in the class
		if filter.ClassID != "" {
			query = query.Where("student_id IN (SELECT id FROM student WHERE class_id = ?)", filter.ClassID)
		}
		if filter.AcademicYearID != "" {
			query = query.Where(sq.Eq{"academic_year_id": filter.AcademicYearID})
		}
		if filter.TermID != "" {
			query = query.Where(sq.Eq{"term_id": filter.TermID})
		}
		if filter.Status != "" {
			query = query.Where(sq.Eq{"status": string(filter.Status)})
		}
	}

	query = query.OrderBy(append(orderBy(ordering, billOrderings), "created_at DESC", "number DESC")...)

	var rows []billRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting bills")
	}
	return repo.fromRows(rows)
}

func (repo billingRepository) UpdateBill(ctx context.Context, bill billing.Bill, exec ...core.DBExecutor) (billing.Bill, error) {
	ex := repo.getExec(exec)
	row, err := repo.toRow(bill)
	if err != nil {
		return billing.Bill{}, err
	}

	query := psql.Update("bill").SetMap(map[string]interface{}{
		"subtotal":      row.Subtotal,
		"discount":      row.Discount,
		"tax":           row.Tax,
		"total_amount":  row.TotalAmount,
		"paid_amount":   row.PaidAmount,
		"balance":       row.Balance,
		"status":        row.Status,
		"due_date":      row.DueDate,
		"paid_date":     row.PaidDate,
		"cancelled_at":  row.CancelledAt,
		"cancelled_by":  row.CancelledBy,
		"cancel_reason": row.CancelReason,
		"version":       sq.Expr("version + 1"),
		"updated_at":    row.UpdatedAt,
	}).Where(sq.Eq{"id": bill.ID, "version": bill.Version, "deleted_at": nil})

	n, err := repo.execute(ctx, ex, query)
	if err != nil {
		return billing.Bill{}, errors.Wrap(err, "updating bill")
	}
	if n == 0 {
		var exists bool
		check := psql.Select().Column(sq.Expr("EXISTS (SELECT 1 FROM bill WHERE id = ? AND deleted_at IS NULL)", bill.ID))
		if err = repo.selectOne(ctx, ex, &exists, check); err != nil {
			return billing.Bill{}, errors.Wrap(err, "checking bill")
		}
		if !exists {
			return billing.Bill{}, core.NewNotFoundError(billing.BillResource, bill.ID)
		}
		return billing.Bill{}, billing.ErrStaleBill
	}
	bill.Version++

	for _, item := range bill.Items {
		query := psql.Update("bill_item").SetMap(map[string]interface{}{
			"paid_amount": item.PaidAmount,
			"balance":     item.Balance,
			"status":      string(item.Status),
			"updated_at":  item.UpdatedAt.UTC(),
		}).Where(sq.Eq{"id": item.ID, "bill_id": bill.ID})
		if _, err = repo.execute(ctx, ex, query); err != nil {
			return billing.Bill{}, errors.Wrapf(err, "updating bill item %d", item.Position)
		}
	}
	return bill, nil
}

func (repo billingRepository) CreatePayment(ctx context.Context, payment billing.Payment, exec ...core.DBExecutor) (billing.Payment, error) {
	ex := repo.getExec(exec)
	payment.ID = uuid.New().String()

	query := psql.Insert("payment").Columns(paymentColumns...).Values(
		payment.ID, payment.BillID, payment.Amount, payment.Method, payment.Reference,
		nullUUID(payment.RecordedBy), payment.PaidAt.UTC(), payment.CreatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, ex, query); err != nil {
		return billing.Payment{}, errors.Wrap(err, "inserting payment")
	}

	if len(payment.Allocations) > 0 {
		allocs := make([]billing.ItemPayment, 0, len(payment.Allocations))
		insert := psql.Insert("bill_item_payment").Columns(itemPaymentColumns...)
		for _, ip := range payment.Allocations {
			ip.ID = uuid.New().String()
			ip.PaymentID = payment.ID
			insert = insert.Values(ip.ID, ip.BillItemID, ip.PaymentID, ip.Amount, ip.Reference, ip.PaidAt.UTC())
			allocs = append(allocs, ip)
		}
		if _, err := repo.execute(ctx, ex, insert); err != nil {
			return billing.Payment{}, errors.Wrap(err, "inserting item payments")
		}
		payment.Allocations = allocs
	}
	return payment, nil
}

func (repo billingRepository) ExistsLiveBill(ctx context.Context, studentID, yearID, termID string, exec ...core.DBExecutor) (bool, error) {
	subq, args, err := sq.Select("1").From("bill").Where(sq.And{
		sq.Eq{"student_id": studentID, "academic_year_id": yearID, "term_id": termParam(termID), "deleted_at": nil},
		sq.NotEq{"status": string(billing.StatusCancelled)},
	}).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}

	var exists bool
	if err = repo.selectOne(ctx, repo.getExec(exec), &exists, psql.Select().Column(sq.Expr("EXISTS ("+subq+")", args...))); err != nil {
		return false, errors.Wrap(err, "checking live bill")
	}
	return exists, nil
}

func (repo billingRepository) BilledTariffIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) (map[string]bool, error) {
	query := psql.Select("bi.tariff_id").Distinct().From("bill_item bi").
		Join("bill b ON b.id = bi.bill_id").
		Where(sq.Eq{"b.student_id": studentID, "b.deleted_at": nil}).
		Where(sq.NotEq{"b.status": string(billing.StatusCancelled)})

	var tariffIDs []string
	if err := repo.selectAll(ctx, repo.getExec(exec), &tariffIDs, query); err != nil {
		return nil, errors.Wrap(err, "selecting billed tariffs")
	}
	ids := make(map[string]bool, len(tariffIDs))
	for _, id := range tariffIDs {
		ids[id] = true
	}
	return ids, nil
}

func (repo billingRepository) MarkOverdue(ctx context.Context, today time.Time, exec ...core.DBExecutor) ([]billing.Bill, error) {
	query := psql.Update("bill").
		Set("status", string(billing.StatusOverdue)).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"status": string(billing.StatusPending), "deleted_at": nil}).
		Where(sq.Lt{"due_date": core.Date(today)}).
		Where(sq.Gt{"balance": 0}).
		Suffix("RETURNING " + joinColumns(billColumns))

	var rows []billRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "marking overdue bills")
	}
	bills, err := repo.fromRows(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].Number < bills[j].Number })
	return bills, nil
}

func (repo billingRepository) NextCounter(ctx context.Context, yearID, termID string, amount decimal.Decimal, exec ...core.DBExecutor) (int, error) {
	query := psql.Insert("billing_counter").
		Columns("academic_year_id", "term_key", "bills_issued", "amount_issued", "updated_at").
		Values(yearID, termKey(termID), 1, amount, time.Now().UTC()).
		Suffix(`ON CONFLICT (academic_year_id, term_key) DO UPDATE SET
			bills_issued = billing_counter.bills_issued + 1,
			amount_issued = billing_counter.amount_issued + EXCLUDED.amount_issued,
			updated_at = EXCLUDED.updated_at`).
		Suffix("RETURNING bills_issued")

	var count int
	if err := repo.selectOne(ctx, repo.getExec(exec), &count, query); err != nil {
		return 0, errors.Wrap(err, "bumping billing counter")
	}
	return count, nil
}

func (repo billingRepository) QueryCounters(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]billing.Counter, error) {
	if !isUUID(yearID) {
		return []billing.Counter{}, nil
	}
	query := psql.Select("academic_year_id", "term_key", "bills_issued", "amount_issued", "updated_at").
		From("billing_counter").
		Where(sq.Eq{"academic_year_id": yearID}).
		OrderBy("term_key ASC")

	var rows []counterRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting billing counters")
	}
	counters := make([]billing.Counter, 0, len(rows))
	for _, r := range rows {
		c := billing.Counter{
			AcademicYearID: r.AcademicYearID,
			TermID:         r.TermKey,
			BillsIssued:    r.BillsIssued,
			AmountIssued:   r.AmountIssued,
			UpdatedAt:      r.UpdatedAt.UTC(),
		}
		if c.TermID == uuid.Nil.String() {
			c.TermID = ""
		}
		counters = append(counters, c)
	}
	return counters, nil
}

func (repo billingRepository) StudentTotals(ctx context.Context, studentID string, exec ...core.DBExecutor) (billing.Balance, error) {
	bal := billing.Balance{
		StudentID:   studentID,
		TotalBilled: decimal.Zero,
		TotalPaid:   decimal.Zero,
		TotalOwed:   decimal.Zero,
	}
	if !isUUID(studentID) {
		return bal, nil
	}

	query := psql.Select(
		"COALESCE(SUM(total_amount), 0) AS total_billed",
		"COALESCE(SUM(paid_amount), 0) AS total_paid",
		"COALESCE(SUM(balance), 0) AS total_owed",
	).Column(sq.Expr("COUNT(*) FILTER (WHERE status IN (?, ?)) AS open_bills",
		string(billing.StatusPending), string(billing.StatusOverdue))).
		From("bill").
		Where(sq.Eq{"student_id": studentID, "deleted_at": nil}).
		Where(sq.NotEq{"status": string(billing.StatusCancelled)})

	var totals totalsRow
	if err := repo.selectOne(ctx, repo.getExec(exec), &totals, query); err != nil {
		return billing.Balance{}, errors.Wrap(err, "summing student bills")
	}
	bal.TotalBilled = totals.TotalBilled
	bal.TotalPaid = totals.TotalPaid
	bal.TotalOwed = totals.TotalOwed
	bal.OpenBills = totals.OpenBills
	return bal, nil
}
