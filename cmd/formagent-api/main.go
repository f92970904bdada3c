package main

import (
	"context"
	"os"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/cmd"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/log"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/otelhelper"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/planner"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "formagent-api",
		Usage:                 "Serve the conversation and planner turn API",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "gemini-api-key",
				Usage:    "API key for the Gemini generation and embedding models",
				Required: true,
				Sources:  cli.EnvVars("GEMINI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "gemini-model",
				Usage:   "Generation model name",
				Value:   "gemini-2.5-flash",
				Sources: cli.EnvVars("GEMINI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				Value:   "gemini-embedding-001",
				Sources: cli.EnvVars("EMBEDDING_MODEL"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the similarity index (empty disables retrieval)",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password for the similarity index",
				Sources: cli.EnvVars("REDIS_PASSWORD"),
			},
			&cli.DurationFlag{
				Name:    "notification-poll-interval",
				Usage:   "How often to consume executor notifications",
				Value:   10 * time.Second,
				Sources: cli.EnvVars("NOTIFICATION_POLL_INTERVAL"),
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

			logger.InfoContext(ctx, "Initializing form agent API")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			generator := cmd.NewGenerator(ctx, command.String("gemini-api-key"), command.String("gemini-model"))
			embedder := cmd.NewEmbedder(ctx, command.String("gemini-api-key"), command.String("embedding-model"))
			index := cmd.NewRetrievalIndex(ctx, logger, command.String("redis-addr"), command.String("redis-password"))

			plannerService := planner.NewService(logger, persistence, generator, embedder, index)

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "formagent-api")
				if err != nil {
					return err
				}

				plannerService.SetTracer(tracer)
			}

			notifications := planner.NewNotificationPoller(logger, persistence, command.Duration("notification-poll-interval"))

			err := notifications.Start(ctx)
			if err != nil {
				return err
			}

			defer func() {
				err := notifications.Stop(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to stop notification poller", "error", err)
				}
			}()

			api := NewAPI(logger, persistence, plannerService)

			return api.Start(command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
