package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
)

type categoryApi struct {
	svc    *category.Service
	subSvc *submission.Service
}

func registerCategoryAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *category.Service, subSvc *submission.Service) {
	api := categoryApi{svc: svc, subSvc: subSvc}

	cg := g.Group("/categories", jwt, accessOnlyMiddleware())
	cg.POST("", api.create)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PATCH("/:id", api.update)
	cg.POST("/:id/activate", api.activate)
	cg.POST("/:id/deactivate", api.deactivate)
	cg.GET("/:id/submissions", api.querySubmissions)
	cg.GET("/:id/export.csv", api.exportCSV)
}

// Handlers

func (api *categoryApi) create(ctx echo.Context) error {
	var data category.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cat, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *categoryApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cats, err := api.svc.Query(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *categoryApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cat, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *categoryApi) update(ctx echo.Context) error {
	var data category.UpdateCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCategory")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cat, err := api.svc.Update(reqCtx, ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *categoryApi) activate(ctx echo.Context) error {
	return api.setActive(ctx, true, "category activated")
}

func (api *categoryApi) deactivate(ctx echo.Context) error {
	return api.setActive(ctx, false, "category deactivated; its public link no longer accepts submissions")
}

func (api *categoryApi) setActive(ctx echo.Context, active bool, success string) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if _, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), claims.Subject, active); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: success})
}

func (api *categoryApi) querySubmissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.subSvc.Query(ctx.Request().Context(), ctx.Param("id"), claims.Subject, ctx.QueryParam("status_filter"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *categoryApi) exportCSV(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	// buffered so that an error mid-export never commits a partial response
	var buf bytes.Buffer
	if err := api.subSvc.ExportCSV(ctx.Request().Context(), ctx.Param("id"), claims.Subject, &buf); err != nil {
		return err
	}

	filename := fmt.Sprintf("submissions_%s_%s.csv", ctx.Param("id"), time.Now().UTC().Format("20060102_150405"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "text/csv", buf.Bytes())
}
