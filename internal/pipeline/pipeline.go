// Package pipeline runs a topic through the cache, the outline enricher and the speech assembler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/presentation-service/internal/cache"
	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/enrich"
	"github.com/book-expert/presentation-service/internal/presentation"
	"github.com/book-expert/presentation-service/internal/speech"
)

// Log messages.
const (
	logFmtProcessing  = "Processing topics: %s"
	logFmtCached      = "Serving '%s' from cache: %s"
	logFmtGenerating  = "No cached version of '%s', generating with %s model"
	logFmtGenerated   = "Generated '%s' with %d slides and %d warnings"
	logFmtExportError = "Failed to export '%s' to %s: %v"
	warnFmtExport     = "output copy failed: %v"
	warnEmptySpeech   = "speech script is empty"
	topicSeparator    = ","
)

// ErrNoClient indicates that no model backend is configured for the requested device.
var ErrNoClient = errors.New("no model client configured for device")

// Settings are the pipeline defaults taken from configuration.
type Settings struct {
	DefaultStrategy presentation.Strategy
	Limits          speech.Limits
	// OutputDir, when set, receives a copy of every result's artifacts.
	OutputDir string
}

// Pipeline produces presentations, reusing cached ones. It runs one request at a time; callers
// serialize concurrent use.
type Pipeline struct {
	clients  map[presentation.Device]core.ModelClient
	cache    *cache.Cache
	log      *logger.Logger
	settings Settings
}

// New creates a Pipeline that calls the model for a device through clients[device].
func New(
	clients map[presentation.Device]core.ModelClient,
	store *cache.Cache,
	log *logger.Logger,
	settings Settings,
) *Pipeline {
	if settings.DefaultStrategy == "" {
		settings.DefaultStrategy = presentation.StrategyChunked
	}

	return &Pipeline{clients: clients, cache: store, log: log, settings: settings}
}

// MainTopic returns the topic a request is about: the first non-empty entry of a comma-separated
// list, trimmed.
func MainTopic(topic string) string {
	for _, part := range strings.Split(topic, topicSeparator) {
		part = strings.TrimSpace(part)
		if part != "" {
			return part
		}
	}

	return ""
}

// Process returns the outline and speech for topic, from the cache when an equivalent topic was
// produced before. Model failures degrade the result and are listed in its warnings; only an empty
// topic, a missing model backend or an unwritable cache fail the call.
func (p *Pipeline) Process(
	ctx context.Context,
	topic string,
	opts presentation.Options,
) (*presentation.Result, error) {
	mainTopic := MainTopic(topic)
	if mainTopic == "" {
		return nil, core.ErrEmptyTopic
	}

	p.log.Info(logFmtProcessing, strings.TrimSpace(topic))

	entry, err := p.cache.Lookup(mainTopic)
	if err == nil {
		p.log.Info(logFmtCached, mainTopic, entry.Folder)

		return p.result(entry, true, nil), nil
	}

	if !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", core.ErrCacheUnwritable, err)
	}

	device := opts.Device
	if device == "" {
		device = presentation.DeviceLocal
	}

	client, ok := p.clients[device]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoClient, device)
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = p.settings.DefaultStrategy
	}

	p.log.Info(logFmtGenerating, mainTopic, device)

	outline, enrichReport := enrich.New(client, p.log).Generate(ctx, mainTopic)
	script, speechReport := speech.New(client, p.log, p.settings.Limits).Assemble(ctx, outline, strategy)

	warnings := make([]string, 0, len(enrichReport.Warnings)+len(speechReport.Warnings)+1)
	warnings = append(warnings, enrichReport.Warnings...)
	warnings = append(warnings, speechReport.Warnings...)

	if strings.TrimSpace(script) == "" {
		warnings = append(warnings, warnEmptySpeech)
	}

	entry, err = p.cache.Store(mainTopic, outline, script)
	if err != nil {
		return nil, fmt.Errorf("failed to cache '%s': %w", mainTopic, err)
	}

	p.log.Info(logFmtGenerated, mainTopic, len(outline.Slides), len(warnings))

	return p.result(entry, false, warnings), nil
}

func (p *Pipeline) result(entry *cache.Entry, cached bool, warnings []string) *presentation.Result {
	if p.settings.OutputDir != "" {
		err := p.cache.Export(entry, p.settings.OutputDir)
		if err != nil {
			p.log.Warn(logFmtExportError, entry.Topic, p.settings.OutputDir, err)
			warnings = append(warnings, fmt.Sprintf(warnFmtExport, err))
		}
	}

	return &presentation.Result{
		Outline:  entry.Outline,
		Speech:   entry.Speech,
		Cached:   cached,
		Warnings: warnings,
		Location: entry.Path,
	}
}
