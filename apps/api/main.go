package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trezcool/malipo/apps/api/echo"
	"github.com/trezcool/malipo/core"
	"github.com/trezcool/malipo/core/category"
	"github.com/trezcool/malipo/core/submission"
	"github.com/trezcool/malipo/core/user"
	"github.com/trezcool/malipo/services/email"
	"github.com/trezcool/malipo/services/logger"
	"github.com/trezcool/malipo/storage/database"
	"github.com/trezcool/malipo/storage/database/sqlx"
	"github.com/trezcool/malipo/storage/files/s3"
)

func main() {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, core.Conf)
	logger.Enable(!core.Conf.Debug)

	if err := run(logger); err != nil {
		logger.Fatal("api: startup failed", err)
	}
}

func run(logger core.Logger) error {
	ctx := context.Background()

	// set up DB
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer db.Close()

	// set up file storage
	fileStore, err := s3files.NewService(ctx, core.Conf)
	if err != nil {
		return err
	}

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc)
	catSvc := category.NewService(sqlxrepos.NewCategoryRepository(db))
	subSvc := submission.NewService(sqlxrepos.NewSubmissionRepository(db), catSvc, fileStore)

	// listen for shutdown signals; the error handler can also request one
	// when it catches an unrecoverable error
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:          core.Conf.Server.Address(),
			UserSvc:       usrSvc,
			CategorySvc:   catSvc,
			SubmissionSvc: subSvc,
			Logger:        logger,
			Shutdown:      func() { shutdownCh <- syscall.SIGTERM },
		},
	)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("api: listening on " + core.Conf.Server.Address())
		serverErrCh <- app.Start()
	}()

	select {
	case err := <-serverErrCh:
		return err
	case sig := <-shutdownCh:
		logger.Info("api: shutdown started", map[string]interface{}{"signal": sig.String()})

		stopCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			return err
		}
		logger.Info("api: shutdown complete")
	}
	return nil
}
