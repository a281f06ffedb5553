// Package exportsvc renders bills as PDF documents and bill listings as spreadsheets.
package exportsvc

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
)

const (
	dateFmt   = "02 Jan 2006"
	sheetName = "Bills"
)

var sheetHeader = []interface{}{
	"Number", "Student", "Class", "Status", "Issue date", "Due date",
	"Subtotal", "Discount", "Tax", "Total", "Paid", "Balance",
}

type (
	// BillDocument is what a bill PDF shows.
	BillDocument struct {
		Bill      billing.Bill
		Student   school.Student
		ClassName string
		Period    string
	}

	// BillRow is a line of the bills spreadsheet.
	BillRow struct {
		Bill        billing.Bill
		StudentName string
		ClassName   string
	}

	Service struct {
		conf *core.Config
	}
)

func NewService(conf *core.Config) *Service {
	return &Service{conf: conf}
}

func (svc *Service) money(d interface{ StringFixed(int32) string }) string {
	return d.StringFixed(2) + " " + svc.conf.Billing.Currency
}

// WriteBillPDF writes the bill as an A4 PDF document.
func (svc *Service) WriteBillPDF(w io.Writer, doc BillDocument) error {
	bill := doc.Bill
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252
	pdf.SetTitle(tr("Bill "+bill.Number), false)
	pdf.SetCreator(tr(svc.conf.AppName), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(svc.conf.AppName), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, tr("Bill "+bill.Number), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	info := [][2]string{
		{"Student", doc.Student.FullName()},
		{"Class", doc.ClassName},
		{"Period", doc.Period},
		{"Status", bill.Status.Label()},
		{"Issue date", bill.IssueDate.Format(dateFmt)},
		{"Due date", bill.DueDate.Format(dateFmt)},
	}
	if bill.PaidDate != nil {
		info = append(info, [2]string{"Paid on", bill.PaidDate.Format(dateFmt)})
	}
	for _, kv := range info {
		pdf.CellFormat(35, 6, tr(kv[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// items table
	widths := []float64{10, 70, 35, 35, 40}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"#", "Item", "Amount", "Paid", "Balance"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range bill.Items {
		pdf.CellFormat(widths[0], 6, fmt.Sprint(item.Position), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(item.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, item.NetAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, item.PaidAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, item.Balance.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	totals := [][2]string{
		{"Subtotal", svc.money(bill.Subtotal)},
		{"Discount", svc.money(bill.Discount)},
		{"Tax", svc.money(bill.Tax)},
		{"Total", svc.money(bill.TotalAmount)},
		{"Paid", svc.money(bill.PaidAmount)},
		{"Balance due", svc.money(bill.Balance)},
	}
	for i, kv := range totals {
		if i >= len(totals)-1 {
			pdf.SetFont("Arial", "B", 11)
		}
		pdf.CellFormat(150, 6, tr(kv[0]), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, tr(kv[1]), "", 1, "R", false, 0, "")
	}

	if len(bill.Payments) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Payments", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		for _, p := range bill.Payments {
			line := fmt.Sprintf("%s  %s  %s %s", p.PaidAt.Format(dateFmt), svc.money(p.Amount), p.Method, p.Reference)
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "writing bill pdf")
	}
	return nil
}

// WriteBillsXLSX writes the rows as a single sheet workbook.
func (svc *Service) WriteBillsXLSX(w io.Writer, rows []BillRow) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = errors.Wrap(cErr, "closing workbook")
		}
	}()

	if err = f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	if err = f.SetSheetRow(sheetName, "A1", &sheetHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err = f.SetCellStyle(sheetName, "A1", "L1", bold); err != nil {
		return errors.Wrap(err, "styling header")
	}
	if err = f.SetColWidth(sheetName, "A", "L", 16); err != nil {
		return errors.Wrap(err, "sizing columns")
	}

	for i, r := range rows {
		b := r.Bill
		row := []interface{}{
			b.Number, r.StudentName, r.ClassName, b.Status.Label(),
			b.IssueDate.Format("2006-01-02"), b.DueDate.Format("2006-01-02"),
			b.Subtotal.InexactFloat64(), b.Discount.InexactFloat64(), b.Tax.InexactFloat64(),
			b.TotalAmount.InexactFloat64(), b.PaidAmount.InexactFloat64(), b.Balance.InexactFloat64(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "writing bill %s", b.Number)
		}
	}

	if err = f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
