package echoapi

import (
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
)

type publicApi struct {
	catSvc *category.Service
	subSvc *submission.Service
}

// registerPublicAPI mounts the anonymous endpoints: students only ever hold
// a category's public token, never an account.
func registerPublicAPI(g *echo.Group, catSvc *category.Service, subSvc *submission.Service) {
	api := publicApi{catSvc: catSvc, subSvc: subSvc}

	pg := g.Group("/public/categories")
	// TODO: rate limit by IP
	pg.GET("/:token", api.retrieve)
	pg.POST("/:token/submissions", api.submit)
}

// Handlers

func (api *publicApi) retrieve(ctx echo.Context) error {
	cat, err := api.catSvc.GetByToken(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return err
	}
	// an unusable link is indistinguishable from an unknown one
	if !cat.IsActive || cat.IsExpired(time.Now().UTC()) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, cat.Public())
}

func (api *publicApi) submit(ctx echo.Context) error {
	data, fh, err := bindSubmissionForm(ctx)
	if err != nil {
		return err
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening receipt form file")
	}
	defer f.Close()

	receipt := submission.Receipt{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Content:     f,
	}

	sub, err := api.subSvc.Create(ctx.Request().Context(), ctx.Param("token"), data, receipt)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SubmissionCreatedResponse{
		ID:      sub.ID,
		Status:  sub.Status,
		Message: "submission received and pending review",
	})
}

type SubmissionCreatedResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func bindSubmissionForm(ctx echo.Context) (submission.NewSubmission, *multipart.FileHeader, error) {
	var data submission.NewSubmission
	data.StudentName = ctx.FormValue("student_name")
	data.StudentPhone = ctx.FormValue("student_phone")

	amount, err := decimal.NewFromString(core.CleanString(ctx.FormValue("amount_paid")))
	if err != nil {
		return data, nil, core.NewValidationError(
			errors.Wrap(err, "parsing amount_paid"),
			core.FieldError{Field: "amount_paid", Error: "a valid amount is required"},
		)
	}
	data.AmountPaid = amount

	if err := data.Validate(); err != nil {
		return data, nil, err
	}

	fh, err := ctx.FormFile("receipt")
	if err != nil {
		return data, nil, core.NewValidationError(
			errors.Wrap(err, "reading receipt form file"),
			core.FieldError{Field: "receipt", Error: "a receipt file is required"},
		)
	}
	return data, fh, nil
}
