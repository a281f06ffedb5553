package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core/billing"
	"github.com/Rwiron/saintmassori-sub002/core/school"
	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

type schoolApi struct {
	svc      *school.Service
	tariffs  *tariff.Service
	billing  *billing.Service
	validate *validator.Validate
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := schoolApi{
		svc:      opts.Directory,
		tariffs:  opts.Tariffs,
		billing:  opts.Billing,
		validate: opts.Validate,
	}

	gg := g.Group("/grades", jwt, adminMiddleware())
	gg.GET("", api.queryGrades)
	gg.POST("", api.createGrade, directoryMiddleware())

	cg := g.Group("/classes", jwt, adminMiddleware())
	cg.GET("", api.queryClasses)
	cg.POST("", api.createClass, directoryMiddleware())
	cg.GET("/:id", api.retrieveClass)
	cg.GET("/:id/tariffs", api.classTariffs)
	cg.PUT("/:id/tariffs/:tariffId", api.assignTariff, billingMiddleware())

	sg := g.Group("/students", jwt, adminMiddleware())
	sg.GET("", api.queryStudents)
	sg.POST("", api.enroll, directoryMiddleware())
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id/class", api.moveStudent, directoryMiddleware())
	sg.PUT("/:id/status", api.changeStatus, directoryMiddleware())
	sg.GET("/:id/balance", api.balance)
}

// Grades

func (api *schoolApi) createGrade(ctx echo.Context) error {
	var data school.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grade, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, grade)
}

func (api *schoolApi) queryGrades(ctx echo.Context) error {
	grades, err := api.svc.QueryGrades(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []school.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

// Classes

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	class, err := api.svc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, class)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	var filter school.ClassFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Class{})
	}

	classes, err := api.svc.QueryClasses(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	class, err := api.svc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, class)
}

func (api *schoolApi) classTariffs(ctx echo.Context) error {
	bindings, err := api.tariffs.ClassTariffs(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying class tariffs")
	}
	if bindings == nil {
		bindings = []tariff.ClassTariff{}
	}
	return ctx.JSON(http.StatusOK, bindings)
}

func (api *schoolApi) assignTariff(ctx echo.Context) error {
	var data tariff.AssignTariff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTariff")
	}
	active := data.IsActive == nil || *data.IsActive

	binding, err := api.tariffs.AssignToClass(ctx.Request().Context(), ctx.Param("id"), ctx.Param("tariffId"), active)
	if err != nil {
		return errors.Wrap(err, "assigning tariff to class")
	}
	return ctx.JSON(http.StatusOK, binding)
}

// Students

func (api *schoolApi) enroll(ctx echo.Context) error {
	var data school.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	student, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, student)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	var filter school.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Student{})
	}
	filter.Clean()

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	student, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *schoolApi) moveStudent(ctx echo.Context) error {
	var data school.MoveStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveStudent")
	}

	student, err := api.svc.Move(ctx.Request().Context(), ctx.Param("id"), data.ClassID)
	if err != nil {
		return errors.Wrap(err, "moving student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *schoolApi) changeStatus(ctx echo.Context) error {
	var data school.ChangeStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeStatus")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	student, err := api.svc.ChangeStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "changing student status")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *schoolApi) balance(ctx echo.Context) error {
	bal, err := api.billing.StudentBalance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student balance")
	}
	return ctx.JSON(http.StatusOK, bal)
}
