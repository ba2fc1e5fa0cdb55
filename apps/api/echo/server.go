package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
	"github.com/trezcool/malipo/core/user"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool
		UserSvc        *user.Service
		CategorySvc    *category.Service
		SubmissionSvc  *submission.Service
		Logger         core.Logger
		// Shutdown is called whenever an unrecoverable error is caught
		// so the caller can stop the server gracefully.
		Shutdown func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(ctx context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Shutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerAuthAPI(g, s.opts.UserSvc)
	registerCategoryAPI(g, jwt, s.opts.CategorySvc, s.opts.SubmissionSvc)
	registerPublicAPI(g, s.opts.CategorySvc, s.opts.SubmissionSvc)
	registerSubmissionAPI(g, jwt, s.opts.SubmissionSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Addr)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Malipo API!")
}
