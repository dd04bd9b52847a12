package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"datawatch/internal/bootstrap/config"
	"datawatch/internal/bootstrap/logging"
	"datawatch/internal/errs"
	"datawatch/internal/infrastructure/dispatch"
)

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume dispatch messages from the queue until interrupted",
	RunE: withApp(func(cmd *cobra.Command, deps *appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cfg := deps.App.Config.Dispatch
		if cfg.Backend != config.BackendNATS {
			return errors.New("worker requires dispatch.backend = nats")
		}

		conn, err := dispatch.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return errs.Wrap(err, "connect worker")
		}
		defer conn.Close()

		consumer := dispatch.NewConsumer(conn, cfg.NATS.SubjectPrefix, deps.Sync)
		if err := consumer.Start(ctx); err != nil {
			return errs.Wrap(err, "start consumer")
		}

		logging.Info(ctx, "worker consuming", slog.String("subject_prefix", cfg.NATS.SubjectPrefix))
		fmt.Fprintln(cmd.OutOrStdout(), "worker started, press ctrl-c to stop")

		waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-waitCtx.Done()

		consumer.Stop(ctx)
		logging.Info(ctx, "worker stopped")
		return nil
	}),
}

func init() {
	workerCmd.AddCommand(workerRunCmd)
}
