package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malipo/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *submission.Service) {
	api := submissionApi{svc: svc}

	sg := g.Group("/submissions", jwt, accessOnlyMiddleware())
	sg.GET("/:id", api.retrieve)
	sg.PATCH("/:id/confirm", api.confirm)
	sg.PATCH("/:id/reject", api.reject)
}

// Handlers

func (api *submissionApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	sub, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) confirm(ctx echo.Context) error {
	data, claims, err := api.bindReview(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.Confirm(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.AdminNote)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) reject(ctx echo.Context) error {
	data, claims, err := api.bindReview(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.AdminNote)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

type ReviewRequest struct {
	AdminNote string `json:"admin_note"`
}

func (api *submissionApi) bindReview(ctx echo.Context) (ReviewRequest, Claims, error) {
	var data ReviewRequest
	if err := ctx.Bind(&data); err != nil {
		return data, Claims{}, errors.Wrap(err, "binding to ReviewRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return data, Claims{}, errors.Wrap(err, "getting context claims")
	}
	return data, claims, nil
}
