package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/user"
)

type authApi struct {
	svc *user.Service
}

func registerAuthAPI(g *echo.Group, svc *user.Service) {
	api := authApi{svc: svc}

	ag := g.Group("/auth")

	// TODO: rate limit `/login` & `/register`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/refresh", api.refresh)
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}

	res, err := newTokenResponse(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	res, err := newTokenResponse(usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// refresh exchanges a valid refresh token for a fresh access token.
// The refresh token itself is returned unchanged.
func (api *authApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := parseToken(data.RefreshToken)
	if err != nil {
		return err
	}
	if claims.TokenType != tokenTypeRefresh {
		return errRefreshInvalid
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errRefreshInvalid
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return errAccountDeactivated
	}

	access, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{
		AccessToken:  access,
		RefreshToken: data.RefreshToken,
		TokenType:    "bearer",
	})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	TokenResponse struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return core.Validate.Struct(lr)
}

func (rr *RefreshRequest) Validate() error {
	return core.Validate.Struct(rr)
}

func newTokenResponse(usr user.User) (TokenResponse, error) {
	access, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "generating access token")
	}
	refresh, err := GenerateToken(GetRefreshClaims(usr))
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "generating refresh token")
	}
	return TokenResponse{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}
