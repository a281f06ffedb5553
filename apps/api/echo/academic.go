package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core/academic"
)

type academicApi struct {
	svc      *academic.Service
	validate *validator.Validate
}

func registerAcademicAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *academic.Service, validate *validator.Validate) {
	api := academicApi{svc: svc, validate: validate}

	yg := g.Group("/academic-years", jwt, adminMiddleware())
	yg.GET("", api.queryYears)
	yg.POST("", api.createYear, directoryMiddleware())
	yg.GET("/:id", api.retrieveYear)
	yg.PUT("/:id/billing", api.setYearBilling, directoryMiddleware())
	yg.GET("/:id/terms", api.queryTerms)
	yg.POST("/:id/terms", api.createTerm, directoryMiddleware())

	g.PUT("/terms/:id/billing", api.setTermBilling, jwt, directoryMiddleware())
}

func (api *academicApi) createYear(ctx echo.Context) error {
	var data academic.NewAcademicYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAcademicYear")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	year, err := api.svc.CreateYear(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *academicApi) queryYears(ctx echo.Context) error {
	years, err := api.svc.QueryYears(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	if years == nil {
		years = []academic.AcademicYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *academicApi) retrieveYear(ctx echo.Context) error {
	year, err := api.svc.GetYear(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *academicApi) setYearBilling(ctx echo.Context) error {
	var data academic.SetBilling
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetBilling")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	year, err := api.svc.SetYearBilling(ctx.Request().Context(), ctx.Param("id"), *data.IsBillingOpen)
	if err != nil {
		return errors.Wrap(err, "setting academic year billing")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *academicApi) createTerm(ctx echo.Context) error {
	var data academic.NewTerm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerm")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	term, err := api.svc.CreateTerm(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating term")
	}
	return ctx.JSON(http.StatusCreated, term)
}

func (api *academicApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.QueryTerms(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	if terms == nil {
		terms = []academic.Term{}
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api *academicApi) setTermBilling(ctx echo.Context) error {
	var data academic.SetBilling
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetBilling")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	term, err := api.svc.SetTermBilling(ctx.Request().Context(), ctx.Param("id"), *data.IsBillingOpen)
	if err != nil {
		return errors.Wrap(err, "setting term billing")
	}
	return ctx.JSON(http.StatusOK, term)
}
