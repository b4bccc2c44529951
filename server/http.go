package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"stream-moderator/config"
	"stream-moderator/constant"
	controlHandler "stream-moderator/handler"
	"stream-moderator/pkg/rabbitmq"
)

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := Build(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to build application")
		return err
	}

	handler := http.Server{
		Handler:           NewRouter(ctx, app.Supervisor, app.Archive, app.Hub),
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zerolog.Ctx(ctx).Info().Str("addr", handler.Addr).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		zerolog.Ctx(ctx).Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return handler.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return app.Supervisor.Run(gCtx, cfg.Server.ReconcileInterval)
	})

	if app.Conn != nil {
		deps := controlHandler.ServiceDependencies{Supervisor: app.Supervisor}
		consumer := rabbitmq.NewConsumer(app.Conn, cfg.Queue, rabbitmq.ControlBinding(), cfg.Queue.ControlWorkers, controlHandler.ControlHandler)
		g.Go(func() error {
			err := consumer.Consume(gCtx, deps)
			if err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Msg("control consumer stopped")
			}
			return nil
		})
	}

	err = g.Wait()
	if app.Publisher != nil {
		_ = app.Publisher.Close()
	}
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return err
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}
