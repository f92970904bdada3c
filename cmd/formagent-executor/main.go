// Package main provides the executor poller process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/cmd"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/executor"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/log"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/otelhelper"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "formagent-executor",
		Usage:                 "Poll and execute pending form creation tasks",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "google-client-id",
				Usage:    "OAuth client ID for the Google Forms API",
				Required: true,
				Sources:  cli.EnvVars("GOOGLE_CLIENT_ID"),
			},
			&cli.StringFlag{
				Name:     "google-client-secret",
				Usage:    "OAuth client secret for the Google Forms API",
				Required: true,
				Sources:  cli.EnvVars("GOOGLE_CLIENT_SECRET"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to poll for pending tasks",
				Value:   5 * time.Second,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "executor-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("formagent-executor").With("workerId", workerID)

			logger.InfoContext(ctx, "Initializing form agent executor")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			formsConfig := cmd.NewFormsConfig(
				command.String("google-client-id"),
				command.String("google-client-secret"),
			)

			service := executor.NewService(logger, persistence, executor.NewClientFactory(formsConfig))

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "formagent-executor")
				if err != nil {
					return err
				}

				service.SetTracer(tracer)
			}

			poller := executor.NewPoller(logger, persistence, service, command.Duration("poll-interval"))

			err := poller.Start(ctx)
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-signalCtx.Done()

			logger.InfoContext(ctx, "Shutting down executor")

			return poller.Stop(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
