package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sac-backend-go/internal/config"
	httpapi "sac-backend-go/internal/http"
	"sac-backend-go/internal/queue"
	"sac-backend-go/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	root := &cobra.Command{
		Use:           "sac-server",
		Short:         "Student activity council backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			public, _ := cmd.Flags().GetBool("host")
			return runServe(cmd.Context(), v, public)
		},
	}
	serve.Flags().Bool("host", false, "listen on 0.0.0.0 instead of HTTP_HOST")
	serve.Flags().Int("port", 0, "listen port (overrides HTTP_PORT)")
	_ = v.BindPFlag("HTTP_PORT", serve.Flags().Lookup("port"))

	root.AddCommand(serve)
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), v)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Consume the upload queue without serving HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), v)
		},
	})
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

func runMigrate(parent context.Context, v *viper.Viper) error {
	ctx, stop := signalContext(parent)
	defer stop()
	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.migrate(ctx)
}

func runServe(parent context.Context, v *viper.Viper, public bool) error {
	ctx, stop := signalContext(parent)
	defer stop()
	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.Close()
	if public {
		a.cfg.HTTPHost = "0.0.0.0"
	}
	if err := a.migrate(ctx); err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a.uploadHub.Run(gctx)
		return nil
	})
	group.Go(func() error {
		a.metricsHub.Run(gctx)
		return nil
	})
	group.Go(func() error {
		a.recorder.Run(gctx)
		return nil
	})
	if a.publisher != nil {
		consumer, relay := a.consumer(), a.relay()
		group.Go(func() error { return consumer.Run(gctx) })
		group.Go(func() error { return relay.Run(gctx) })
	}

	server := httpapi.NewServer(a.db, a.cfg, httpapi.Deps{
		Accounts:   a.accounts,
		Media:      a.media,
		Uploads:    a.dispatcher(),
		UploadHub:  a.uploadHub,
		MetricsHub: a.metricsHub,
		Logger:     a.logger,
	})
	httpServer := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	group.Go(func() error {
		a.logger.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		if a.inline != nil {
			if werr := a.inline.Wait(shutdownCtx); werr != nil {
				a.logger.Warn("uploads still running at shutdown", zap.Error(werr))
			}
		}
		return err
	})

	err = group.Wait()
	a.logger.Info("shutdown complete")
	return err
}

func runWorker(parent context.Context, v *viper.Viper) error {
	ctx, stop := signalContext(parent)
	defer stop()
	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.cfg.AMQPURL == "" {
		return errors.New("worker needs AMQP_URL")
	}
	a.logger.Info("upload worker started", zap.String("queue", a.cfg.UploadQueue))
	return a.consumer().Run(ctx)
}

var (
	_ services.Dispatcher = (*queue.Publisher)(nil)
	_ services.EventSink  = (*queue.EventBus)(nil)
)
