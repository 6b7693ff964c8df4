package cmds

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentwars/arena-api/cmd/worker/internal/command"
	"github.com/agentwars/arena-api/cmd/worker/internal/gitfetch"
	"github.com/agentwars/arena-api/cmd/worker/internal/probe"
	"github.com/agentwars/arena-api/cmd/worker/internal/setup"
	"github.com/agentwars/arena-api/cmd/worker/internal/tick"
	"github.com/agentwars/arena-api/internal/config"
	"github.com/agentwars/arena-api/internal/database"
	"github.com/agentwars/arena-api/internal/logger"
	"github.com/agentwars/arena-api/internal/store"
	"github.com/agentwars/arena-api/internal/types"
	"github.com/agentwars/arena-api/internal/upload"
	"github.com/agentwars/arena-api/internal/workererrors"
)

var tracer = otel.Tracer("github.com/agentwars/arena-api/worker/cmds")

var (
	tickAtFlag string
	baseDir    string
	every      time.Duration
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one evaluation round over every active project",
	Long: `Evaluates every active project for the current 15-minute window:
resolves the head commit, fetches the repository, validates the declared
manifest and README, probes the demo URL, runs declared setup commands, and
persists the evaluation, score, and event feed entries.

Re-running inside the same window overwrites that window's rows instead of
duplicating them, so a crashed or repeated invocation is safe.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "tickCmd")
		defer span.End()

		tickAt := time.Now()
		if tickAtFlag != "" {
			parsed, err := time.Parse(time.RFC3339, tickAtFlag)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "invalid tick-at flag")
				return workererrors.ExitErrorWrap(
					types.ExitErrored,
					fmt.Errorf("invalid --tick-at: %w", err),
				)
			}
			tickAt = parsed
		}

		cfg, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		db, err := database.Connect(ctx, cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to connect to database")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}
		defer func() {
			sqlDB, err := db.DB()
			if err != nil {
				return
			}
			if err := sqlDB.Close(); err != nil {
				logger.Logger.Warn("failed to close database", "error", err)
			}
		}()

		var archiver upload.Uploader
		if cfg.S3Archive != nil && cfg.S3Archive.Enabled {
			minioUploader, err := upload.NewMinioUploader(
				cfg.S3Archive.Endpoint,
				cfg.S3Archive.AccessKeyID,
				cfg.S3Archive.SecretAccessKey,
				cfg.S3Archive.SSLEnabled,
				cfg.S3Archive.BucketName,
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to construct archiver")
				return workererrors.ExitErrorWrap(types.ExitErrored, err)
			}
			archiver = upload.NewRetryUploader(minioUploader)
		}

		tempDir := ""
		if baseDir != "" {
			tempDir = baseDir
		} else if cfg.TempDir != nil {
			tempDir = *cfg.TempDir
		}

		orchestrator := tick.NewOrchestrator(
			store.NewGormGateway(db),
			gitfetch.NewGitFetcher(),
			probe.NewHTTPProber(),
			setup.NewShellRunner(command.NewShellExecutor()),
			tick.Options{
				Archiver:        archiver,
				TempDir:         tempDir,
				Workers:         cfg.Tick.Workers,
				ProjectDeadline: cfg.Tick.ProjectDeadline,
			},
		)

		if every > 0 {
			err = orchestrator.RunEvery(ctx, every)
		} else {
			err = orchestrator.RunTick(ctx, tickAt)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to run tick")
			return workererrors.ExitErrorWrap(types.ExitErrored, err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "ran tick")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)

	tickCmd.Flags().
		StringVar(&tickAtFlag, "tick-at", "", "RFC3339 timestamp to evaluate, floored to the 15-minute window. Defaults to now.")
	tickCmd.Flags().
		StringVar(&baseDir, "base-dir", "", "Base dir to create temporary workspaces in. Defaults to the configured temp dir.")
	tickCmd.Flags().
		DurationVar(&every, "every", 0, "Run as a loop, evaluating once per interval (e.g. 15m) until signalled. Ignores --tick-at.")
}
