package echoapi

import (
	"bytes"
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core"
	"github.com/Rwiron/saintmassori-sub002/core/academic"
	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	exportsvc "github.com/Rwiron/saintmassori-sub002/services/export"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type billingApi struct {
	svc       *billing.Service
	calendar  *academic.Service
	directory *school.Service
	export    *exportsvc.Service
	validate  *validator.Validate
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := billingApi{
		svc:       opts.Billing,
		calendar:  opts.Calendar,
		directory: opts.Directory,
		export:    opts.Export,
		validate:  opts.Validate,
	}

	bg := g.Group("/bills", jwt, adminMiddleware())
	bg.POST("/generate", api.generate, billingMiddleware())
	bg.POST("/mark-overdue", api.markOverdue, billingMiddleware())
	bg.GET("", api.query)
	bg.GET("/export", api.exportXLSX)
	bg.GET("/:id", api.retrieve)
	bg.GET("/:id/pdf", api.pdf)
	bg.POST("/:id/payments", api.recordPayment, billingMiddleware())
	bg.POST("/:id/cancel", api.cancel, billingMiddleware())

	g.GET("/reports/billing", api.report, jwt, adminMiddleware())
}

func contextUserID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (api *billingApi) generate(ctx echo.Context) error {
	var data billing.GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	by, err := contextUserID(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	bills, err := api.svc.Generate(ctx.Request().Context(), data, by)
	if err != nil {
		return errors.Wrap(err, "generating bills")
	}
	return ctx.JSON(http.StatusCreated, bills)
}

func (api *billingApi) queryBills(ctx echo.Context) ([]billing.Bill, error) {
	filter := new(billing.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	bills, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	return bills, errors.Wrap(err, "querying bills")
}

func (api *billingApi) query(ctx echo.Context) error {
	bills, err := api.queryBills(ctx)
	if err != nil {
		return err
	}
	if bills == nil {
		bills = []billing.Bill{}
	}
	return ctx.JSON(http.StatusOK, bills)
}

func (api *billingApi) exportXLSX(ctx echo.Context) error {
	bills, err := api.queryBills(ctx)
	if err != nil {
		return err
	}

	names := newNameResolver(api.directory)
	rows := make([]exportsvc.BillRow, 0, len(bills))
	for _, bill := range bills {
		student, className, err := names.student(ctx.Request().Context(), bill.StudentID)
		if err != nil {
			return err
		}
		rows = append(rows, exportsvc.BillRow{Bill: bill, StudentName: student.FullName(), ClassName: className})
	}

	var buf bytes.Buffer
	if err = api.export.WriteBillsXLSX(&buf, rows); err != nil {
		return errors.Wrap(err, "exporting bills")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="bills.xlsx"`)
	return ctx.Blob(http.StatusOK, mimeXLSX, buf.Bytes())
}

func (api *billingApi) retrieve(ctx echo.Context) error {
	bill, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting bill")
	}
	return ctx.JSON(http.StatusOK, bill)
}

func (api *billingApi) pdf(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	bill, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting bill")
	}
	student, className, err := newNameResolver(api.directory).student(reqCtx, bill.StudentID)
	if err != nil {
		return err
	}
	period, err := api.periodName(reqCtx, bill)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	doc := exportsvc.BillDocument{Bill: bill, Student: student, ClassName: className, Period: period}
	if err = api.export.WriteBillPDF(&buf, doc); err != nil {
		return errors.Wrap(err, "rendering bill")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+bill.Number+`.pdf"`)
	return ctx.Blob(http.StatusOK, mimePDF, buf.Bytes())
}

func (api *billingApi) periodName(ctx context.Context, bill billing.Bill) (string, error) {
	year, err := api.calendar.GetYear(ctx, bill.AcademicYearID)
	if err != nil {
		return "", errors.Wrap(err, "getting academic year")
	}
	if bill.TermID == "" {
		return year.Name, nil
	}
	term, err := api.calendar.GetTerm(ctx, bill.TermID)
	if err != nil {
		return "", errors.Wrap(err, "getting term")
	}
	return year.Name + ", " + term.Name, nil
}

func (api *billingApi) recordPayment(ctx echo.Context) error {
	var data billing.PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	by, err := contextUserID(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	bill, err := api.svc.RecordPayment(ctx.Request().Context(), ctx.Param("id"), data, by)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, bill)
}

func (api *billingApi) cancel(ctx echo.Context) error {
	var data billing.CancelRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	by, err := contextUserID(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	bill, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), data, by)
	if err != nil {
		return errors.Wrap(err, "cancelling bill")
	}
	return ctx.JSON(http.StatusOK, bill)
}

func (api *billingApi) markOverdue(ctx echo.Context) error {
	n, err := api.svc.MarkOverdue(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "marking overdue bills")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *billingApi) report(ctx echo.Context) error {
	counters, err := api.svc.Report(ctx.Request().Context(), ctx.QueryParam("academic_year_id"))
	if err != nil {
		return errors.Wrap(err, "building billing report")
	}
	if counters == nil {
		counters = []billing.Counter{}
	}
	return ctx.JSON(http.StatusOK, counters)
}

// nameResolver memoizes the student and class lookups of a listing.
type nameResolver struct {
	directory *school.Service
	students  map[string]school.Student
	classes   map[string]string
}

func newNameResolver(directory *school.Service) *nameResolver {
	return &nameResolver{
		directory: directory,
		students:  make(map[string]school.Student),
		classes:   make(map[string]string),
	}
}

func (r *nameResolver) student(ctx context.Context, id string) (school.Student, string, error) {
	student, ok := r.students[id]
	if !ok {
		var err error
		if student, err = r.directory.GetStudent(ctx, id); err != nil {
			if !core.IsNotFound(err) {
				return school.Student{}, "", errors.Wrap(err, "getting student")
			}
			student = school.Student{ID: id}
		}
		r.students[id] = student
	}
	if student.ClassID == "" {
		return student, "", nil
	}

	className, ok := r.classes[student.ClassID]
	if !ok {
		class, err := r.directory.GetClass(ctx, student.ClassID)
		if err != nil && !core.IsNotFound(err) {
			return school.Student{}, "", errors.Wrap(err, "getting class")
		}
		className = class.Name
		r.classes[student.ClassID] = className
	}
	return student, className, nil
}
