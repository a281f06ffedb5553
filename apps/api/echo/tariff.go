package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Rwiron/saintmassori-sub002/core/tariff"
)

type tariffApi struct {
	svc      *tariff.Service
	validate *validator.Validate
}

func registerTariffAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *tariff.Service, validate *validator.Validate) {
	api := tariffApi{svc: svc, validate: validate}

	tg := g.Group("/tariffs", jwt, adminMiddleware())
	tg.GET("", api.query)
	tg.POST("", api.create, billingMiddleware())
	tg.GET("/options", api.options)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update, billingMiddleware())
	tg.DELETE("/:id", api.destroy, billingMiddleware())
}

func (api *tariffApi) create(ctx echo.Context) error {
	var data tariff.NewTariff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTariff")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating tariff")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *tariffApi) query(ctx echo.Context) error {
	filter := new(tariff.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []tariff.Tariff{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	tariffs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tariffs")
	}
	if tariffs == nil {
		tariffs = []tariff.Tariff{}
	}
	return ctx.JSON(http.StatusOK, tariffs)
}

func (api *tariffApi) options(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, tariff.GetOptions())
}

func (api *tariffApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting tariff")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *tariffApi) update(ctx echo.Context) error {
	var data tariff.UpdateTariff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTariff")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating tariff")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *tariffApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting tariff")
	}
	return ctx.NoContent(http.StatusNoContent)
}
