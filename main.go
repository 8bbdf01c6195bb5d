package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ideobatch/annotate"
	"ideobatch/core"
	"ideobatch/core/validation"
	"ideobatch/db"
	"ideobatch/dispatch"
	"ideobatch/ideogram"
	"ideobatch/imagegen"
	"ideobatch/llm"
	"ideobatch/logging"
	"ideobatch/metrics"
	"ideobatch/pipeline"
	"ideobatch/prompts"
	"ideobatch/shutdown"
	"ideobatch/storage"
)

// cliOptions are the command line overrides on top of the settings file.
type cliOptions struct {
	settingsPath string
	promptsPath  string
	logFile      string
	limit        int
	copies       int
	seed         int64
	imageSeed    int
	noShuffle    bool
	verbose      bool
	validateOnly bool
}

func parseFlags(args []string) (cliOptions, error) {
	var opts cliOptions
	fset := flag.NewFlagSet("ideobatch", flag.ContinueOnError)
	fset.StringVar(&opts.settingsPath, "settings", core.DefaultSettingsFile, "settings file (YAML or JSON)")
	fset.StringVar(&opts.promptsPath, "prompts", "", "prompts file, overrides load_prompts_from")
	fset.StringVar(&opts.logFile, "log-file", "logs/ideobatch.log", "application log file, empty disables")
	fset.IntVar(&opts.limit, "limit", 0, "maximum number of images to create (0 keeps the default)")
	fset.IntVar(&opts.copies, "copies", 0, "copies per prompt and variant (0 keeps the default)")
	fset.Int64Var(&opts.seed, "shuffle-seed", 0, "seed for prompt shuffling, 0 picks one from the clock")
	fset.IntVar(&opts.imageSeed, "seed", -1, "fixed image seed sent with every request, -1 lets the service choose")
	fset.BoolVar(&opts.noShuffle, "no-shuffle", false, "keep prompt file order")
	fset.BoolVar(&opts.verbose, "verbose", false, "debug logging with a console encoder")
	fset.BoolVar(&opts.validateOnly, "validate", false, "run the pre-flight checks and exit")
	err := fset.Parse(args)
	return opts, err
}

// apply copies the overrides onto the stock run configuration.
func (o cliOptions) apply(cfg *pipeline.RunConfig) {
	if o.limit > 0 {
		cfg.CreationLimit = o.limit
	}
	if o.copies > 0 {
		cfg.CopiesPer = o.copies
	}
	if o.noShuffle {
		cfg.RandomizeOrder = false
	}
	cfg.Seed = o.seed
	if o.imageSeed >= 0 {
		seed := o.imageSeed
		cfg.Params.Seed = &seed
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return core.ExitCodeSuccess
		}
		return core.ExitCodeError
	}

	logger, err := logging.New(logging.Options{
		Verbose:  opts.verbose,
		Level:    os.Getenv("LOG_LEVEL"),
		FilePath: opts.logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	manager := shutdown.NewManager(logger)
	manager.Register("logger", 100, func(context.Context) error {
		// Syncing stderr fails on some terminals; it is not worth reporting.
		_ = logger.Sync()
		return nil
	})
	defer manager.Shutdown()
	manager.Start()
	ctx := manager.Context()

	settings, err := core.LoadSettings(opts.settingsPath)
	if err != nil {
		reportConfigError(logger, err)
		return core.ExitCodeError
	}
	if opts.promptsPath != "" {
		settings.LoadPromptsFrom = opts.promptsPath
	}

	if code := runStartupValidation(logger, settings); code != core.ExitCodeSuccess || opts.validateOnly {
		return code
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("Settings loaded",
		zap.String("prompts", settings.LoadPromptsFrom),
		zap.String("images", settings.ImageDownloadFolder),
		zap.Int("max_concurrent", settings.MaxConcurrent),
		zap.Duration("request_timeout", settings.RequestTimeout),
		zap.Bool("save_raw", settings.SaveRawImage),
		zap.Bool("save_annotated", settings.SaveAnnotatedImage),
		zap.Bool("save_json", settings.SaveJSONLog),
		zap.Bool("rewrite", settings.RewritePrompts),
		zap.Bool("s3", settings.S3.Enabled()),
	)

	list, err := prompts.Load(settings.LoadPromptsFrom)
	if err != nil {
		logger.Error("Failed to load prompts", zap.Error(err))
		return core.ExitCodeError
	}

	cfg := pipeline.DefaultRunConfig()
	opts.apply(&cfg)
	if settings.RewritePrompts {
		completer, err := llm.FromSettings(ctx, settings)
		if err != nil {
			reportConfigError(logger, err)
			return core.ExitCodeError
		}
		cfg.Rewriter = llm.NewRewriter(completer, llm.WithRewriteLogger(logger))
		logger.Info("Prompt rewriting enabled", zap.String("backend", completer.Name()))
	}

	jobs, stats, err := pipeline.NewExpander().WithLogger(logger).Expand(ctx, list, cfg)
	if err != nil {
		logger.Error("Failed to expand prompts", zap.Error(err))
		return core.ExitCodeError
	}
	if len(jobs) == 0 {
		logger.Warn("No jobs to run", zap.Int("prompts", stats.Input), zap.Int("rejected", stats.Rejected))
		return core.ExitCodeSuccess
	}

	store := metrics.NewStore(metrics.DefaultStoreConfig())
	dispatcher, err := buildDispatcher(ctx, settings, runID, store, logger, manager)
	if err != nil {
		logger.Error("Failed to set up dispatch", zap.Error(err))
		return core.ExitCodeError
	}

	logger.Info("Dispatching jobs",
		zap.Int("jobs", len(jobs)),
		zap.Int("max_concurrent", dispatcher.MaxConcurrency()))

	report := dispatcher.Run(ctx, jobs)

	tally := buildTally(runID, len(jobs), report, store)
	logger.Info("Batch finished",
		zap.Int("completed", tally.Completed),
		zap.Int("failed", tally.Failed),
		zap.Int("minted", tally.Minted),
		zap.Int("published", tally.Published),
		zap.Int("publish_errors", tally.PublishErrors),
		zap.Int("peak_in_flight", tally.PeakInFlight),
		zap.Duration("elapsed", tally.Elapsed),
	)
	for _, f := range report.Failures {
		logger.Warn("Job failed",
			zap.Int("index", f.Job.Index),
			zap.String("prompt", f.Job.Prompt.Visible),
			zap.Error(f.Err))
	}
	printTally(os.Stdout, tally)

	return core.ExitCodeForRun(report.Failed)
}

// buildDispatcher wires the generation client, the artifact publisher and
// the history database. Closers are registered on manager.
func buildDispatcher(ctx context.Context, settings *core.Settings, runID string, recorder metrics.Recorder, logger *logging.Logger, manager *shutdown.Manager) (*dispatch.Dispatcher, error) {
	clientOpts := []ideogram.Option{
		ideogram.WithBaseURL(settings.IdeogramBaseURL),
		ideogram.WithHTTPClient(settings.HTTPClient()),
		ideogram.WithLogger(logger.Named("ideogram")),
	}
	if settings.EnableLogging {
		clientOpts = append(clientOpts, ideogram.WithRequestLog(ideogram.NewRequestLog(settings.LogFilePath)))
	}
	client, err := ideogram.NewClient(settings.IdeogramAPIKey, clientOpts...)
	if err != nil {
		return nil, err
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithMaxConcurrency(settings.MaxConcurrent),
		dispatch.WithRecorder(recorder),
		dispatch.WithLogger(logger),
		dispatch.WithRunID(runID),
	}

	if settings.SavesAnything() {
		publisher, err := buildPublisher(settings, runID, logger)
		if err != nil {
			return nil, err
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithPublisher(publisher))
	}

	if settings.HistoryDBPath != "" {
		observer, err := openHistory(ctx, settings, runID, logger, manager)
		if err != nil {
			return nil, err
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithObserver(observer))
	}

	return dispatch.New(client, dispatchOpts...), nil
}

func buildPublisher(settings *core.Settings, runID string, logger *logging.Logger) (*imagegen.Publisher, error) {
	local, err := storage.NewLocalSink(settings.ImageDownloadFolder)
	if err != nil {
		return nil, err
	}
	sinks := []storage.Sink{local}

	if settings.S3.Enabled() {
		mirror, err := storage.NewS3Sink(storage.S3Config{
			Endpoint:  settings.S3.Endpoint,
			Region:    settings.S3.Region,
			AccessKey: settings.S3.AccessKey,
			SecretKey: settings.S3.SecretKey,
			Bucket:    settings.S3.Bucket,
			Prefix:    path.Join(settings.S3.Prefix, runID),
			UseSSL:    settings.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mirror)
	}

	renderer, err := annotate.NewRenderer(annotate.DefaultOptions())
	if err != nil {
		return nil, err
	}

	downloadCfg := imagegen.DefaultDownloaderConfig()
	downloadCfg.HTTPClient = settings.HTTPClient()
	downloader, err := imagegen.NewDownloader(downloadCfg)
	if err != nil {
		return nil, err
	}

	return imagegen.NewPublisher(downloader, renderer, storage.NewMultiSink(sinks...),
		imagegen.PublisherConfig{
			SaveRaw:       settings.SaveRawImage,
			SaveAnnotated: settings.SaveAnnotatedImage,
			SaveJSON:      settings.SaveJSONLog,
		},
		imagegen.WithPublisherLogger(logger)), nil
}

func openHistory(ctx context.Context, settings *core.Settings, runID string, logger *logging.Logger, manager *shutdown.Manager) (*historyObserver, error) {
	database, err := db.NewDatabase(settings.HistoryDBPath)
	if err != nil {
		return nil, err
	}
	manager.Register("database", 20, func(context.Context) error { return database.Close() })

	repo := db.NewHistoryRepository(database.DB())
	if settings.HistoryRetention > 0 {
		deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-settings.HistoryRetention))
		if err != nil {
			logger.Warn("Failed to prune history", zap.Error(err))
		} else if deleted > 0 {
			logger.Info("Pruned history", zap.Int64("rows", deleted))
		}
	}

	writer := db.NewHistoryWriter(repo, logger)
	manager.Register("history", 10, func(context.Context) error {
		writer.Close()
		return nil
	})
	return newHistoryObserver(runID, writer), nil
}

// runStartupValidation runs the pre-flight checks and returns the exit code.
func runStartupValidation(logger *logging.Logger, settings *core.Settings) int {
	result := validation.NewValidationSuite(settings).Validate()

	if !result.Success {
		logger.Error("Configuration validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration),
		)
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("Validation step failed",
					zap.String("step", step.Name),
					zap.String("message", step.Message),
					zap.Error(step.Error),
				)
			}
		}
		return core.ExitCodeError
	}

	logger.Debug("Configuration validation passed",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Duration("duration", result.Duration))
	return core.ExitCodeSuccess
}

// reportConfigError prints the action hint of a ConfigError to the console
// and logs the error.
func reportConfigError(logger *logging.Logger, err error) {
	logger.Error("Configuration error",
		zap.String("code", core.GetErrorCode(err)),
		zap.Error(err))
	if cfgErr, ok := core.IsConfigError(err); ok && cfgErr.Action != "" {
		color.New(color.FgYellow).Fprintf(os.Stderr, "  -> %s\n", cfgErr.Action)
	}
}
