// presentation-client generates presentations from the command line and manages the local cache.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/presentation-service/internal/config"
	"github.com/book-expert/presentation-service/internal/llm"
	"github.com/book-expert/presentation-service/internal/pipeline"
	"github.com/book-expert/presentation-service/internal/presentation"
)

// Flag descriptions.
const (
	flagTopicDesc    = "Topic to generate a presentation for; comma-separated topics use the first as the main topic"
	flagStrategyDesc = "Speech strategy: chunked or direct (defaults to speech.default_strategy)"
	flagDeviceDesc   = "Model backend: local or remote"
	flagConfigDesc   = "Path to project.toml (defaults to ./project.toml when present)"
	flagOutputDesc   = "Directory that receives a copy of the outline and speech"
	flagListDesc     = "List cached presentations and exit"
	flagDeleteDesc   = "Delete the cached presentation in the named folder and exit"
	flagCleanDesc    = "Remove incomplete cache entries and exit"
	flagHealthDesc   = "Check the local model server and exit"
	flagVerboseDesc  = "Enable verbose logging"
)

// Flag names.
const (
	flagTopic    = "topic"
	flagStrategy = "strategy"
	flagDevice   = "device"
	flagConfig   = "config"
	flagOutput   = "output"
	flagList     = "list"
	flagDelete   = "delete"
	flagClean    = "clean"
	flagHealth   = "health"
	flagVerbose  = "verbose"
)

// Error and log messages.
const (
	errFailedToLoadConfig = "failed to load configuration: %w"
	errFailedToInitLogger = "failed to initialize logger: %w"
	errHealthCheckFailed  = "Health check failed: %v"
	msgServiceNotHealthy  = "Model server is not healthy: %v\n"
	msgServiceHealthy     = "Model server is healthy"
	logClientInitialized  = "Presentation client initialized (cache: %s)"
	logGenerated          = "Generated presentation '%s' in %s"
	msgResultFmt          = "%s: %s\n"
	msgCachedFmt          = "Served from cache: %t\n"
	msgWarningFmt         = "Warning: %s\n"
	msgListFmt            = "%s\t%s\n"
	msgCacheEmpty         = "No cached presentations found."
	msgRemovedFmt         = "Removed %s\n"
	msgDeletedFmt         = "Deleted %s\n"
)

// File names and timeouts.
const (
	defaultConfigFile  = "project.toml"
	logFileNameDefault = "presentation-client.log"
	logFileNameVerbose = "presentation-client-verbose.log"
	healthCheckTimeout = 10 * time.Second
)

var (
	errNoAction        = errors.New("one of --topic, --list, --delete, --clean or --health must be provided")
	errConflictingFlag = errors.New("only one of --topic, --list, --delete, --clean or --health may be provided")
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	topic    string
	strategy string
	device   string
	config   string
	output   string
	delete   string
	list     bool
	clean    bool
	health   bool
	verbose  bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	err = validateFlags(flags)
	if err != nil {
		return err
	}

	cfg, clientLog, err := setup(flags)
	if err != nil {
		return err
	}

	defer func() { _ = clientLog.Close() }()

	clientLog.Info(logClientInitialized, cfg.Cache.Dir)

	if flags.health {
		return handleHealthCheck(cfg, clientLog, stdout)
	}

	generator, store, err := pipeline.NewFromConfig(cfg, clientLog)
	if err != nil {
		return err
	}

	switch {
	case flags.list:
		summaries, listErr := store.List()
		if listErr != nil {
			return listErr
		}

		if len(summaries) == 0 {
			_, _ = fmt.Fprintln(stdout, msgCacheEmpty)
		}

		for _, summary := range summaries {
			_, _ = fmt.Fprintf(stdout, msgListFmt, summary.Folder, summary.DisplayName)
		}

		return nil
	case flags.delete != "":
		deleteErr := store.Delete(flags.delete)
		if deleteErr != nil {
			return deleteErr
		}

		_, _ = fmt.Fprintf(stdout, msgDeletedFmt, flags.delete)

		return nil
	case flags.clean:
		removed, cleanErr := store.Clean()
		for _, folder := range removed {
			_, _ = fmt.Fprintf(stdout, msgRemovedFmt, folder)
		}

		return cleanErr
	default:
		return handleGenerate(generator, clientLog, flags, stdout)
	}
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("presentation-client", flag.ContinueOnError)
	flagSet.StringVar(&flags.topic, flagTopic, "", flagTopicDesc)
	flagSet.StringVar(&flags.strategy, flagStrategy, "", flagStrategyDesc)
	flagSet.StringVar(&flags.device, flagDevice, "", flagDeviceDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.delete, flagDelete, "", flagDeleteDesc)
	flagSet.BoolVar(&flags.list, flagList, false, flagListDesc)
	flagSet.BoolVar(&flags.clean, flagClean, false, flagCleanDesc)
	flagSet.BoolVar(&flags.health, flagHealth, false, flagHealthDesc)
	flagSet.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return flags, fmt.Errorf("failed to parse flags: %w", err)
	}

	return flags, nil
}

// validateFlags requires exactly one action.
func validateFlags(flags appFlags) error {
	actions := 0

	for _, set := range []bool{flags.topic != "", flags.list, flags.delete != "", flags.clean, flags.health} {
		if set {
			actions++
		}
	}

	switch actions {
	case 0:
		return errNoAction
	case 1:
		return nil
	default:
		return errConflictingFlag
	}
}

// setup loads the configuration and initializes the logger.
func setup(flags appFlags) (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	if flags.output != "" {
		cfg.Paths.OutputDir = flags.output
	}

	logFileName := logFileNameDefault
	if flags.verbose {
		logFileName = logFileNameVerbose
	}

	clientLog, err := logger.New(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		return nil, nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	return cfg, clientLog, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	_, err := os.Stat(defaultConfigFile)
	if err == nil {
		return config.LoadFile(defaultConfigFile)
	}

	return config.Default(), nil
}

// handleHealthCheck checks the local model server and prints the result.
func handleHealthCheck(cfg *config.Config, clientLog *logger.Logger, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	client := llm.NewOllamaClient(cfg.LLM.Local.BaseURL, cfg.LLM.Local.Model, healthCheckTimeout)

	err := client.HealthCheck(ctx)
	if err != nil {
		clientLog.Error(errHealthCheckFailed, err)
		_, _ = fmt.Fprintf(stdout, msgServiceNotHealthy, err)

		return err
	}

	_, _ = fmt.Fprintln(stdout, msgServiceHealthy)

	return nil
}

// handleGenerate runs the pipeline for the topic flag and prints where the result was stored.
func handleGenerate(
	generator *pipeline.Pipeline,
	clientLog *logger.Logger,
	flags appFlags,
	stdout io.Writer,
) error {
	var (
		opts presentation.Options
		err  error
	)

	if flags.strategy != "" {
		opts.Strategy, err = presentation.ParseStrategy(flags.strategy)
		if err != nil {
			return err
		}
	}

	opts.Device, err = presentation.ParseDevice(flags.device)
	if err != nil {
		return err
	}

	result, err := generator.Process(context.Background(), flags.topic, opts)
	if err != nil {
		return err
	}

	clientLog.Info(logGenerated, result.Outline.Title, result.Location)

	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(stdout, msgWarningFmt, warning)
	}

	_, _ = fmt.Fprintf(stdout, msgResultFmt, result.Outline.Title, result.Location)
	_, _ = fmt.Fprintf(stdout, msgCachedFmt, result.Cached)

	return nil
}
