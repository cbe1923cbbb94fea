// Package enrich turns a topic into an enriched presentation outline.
//
// Generation is a single forward pass: one call produces the initial outline, then every slide is
// enriched by its own call. A failed call never aborts the pass. The initial outline falls back to
// an empty outline titled with the topic, and a slide whose enrichment fails keeps its bullets with
// empty sub-points and details.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/jsonrepair"
	"github.com/book-expert/presentation-service/internal/presentation"
)

// Log and warning messages.
const (
	logFmtOutlineGenerated = "Initial outline generated for '%s' with %d slides"
	logFmtOutlineFallback  = "Initial outline for '%s' unavailable, using empty outline: %v"
	logFmtSlideEnriched    = "Slide %d/%d enriched: %s"
	logFmtSlideDegraded    = "Slide %d could not be enriched, keeping bullets only: %v"
	warnFmtOutline         = "initial outline unavailable: %v"
	warnFmtSlide           = "slide %d (%s) not enriched: %v"
	userFmtEnrichment      = "topic: %s\n\n%s"
)

// Report describes the degradation a generation pass went through.
type Report struct {
	OutlineFallback bool
	DegradedSlides  []int
	Warnings        []string
}

// Degraded reports whether any stage fell back.
func (r Report) Degraded() bool {
	return r.OutlineFallback || len(r.DegradedSlides) > 0
}

// Enricher drives the outline and per-slide enrichment calls.
type Enricher struct {
	client core.ModelClient
	log    *logger.Logger
}

// New creates an Enricher that sends its calls through client.
func New(client core.ModelClient, log *logger.Logger) *Enricher {
	return &Enricher{client: client, log: log}
}

// Generate produces the initial outline for topic and enriches every slide of it.
func (e *Enricher) Generate(ctx context.Context, topic string) (*presentation.Outline, Report) {
	var report Report

	outline, err := e.InitialOutline(ctx, topic)
	if err != nil {
		e.log.Warn(logFmtOutlineFallback, topic, err)
		report.OutlineFallback = true
		report.Warnings = append(report.Warnings, fmt.Sprintf(warnFmtOutline, err))
	}

	enrichReport := e.Enrich(ctx, topic, outline)
	report.DegradedSlides = enrichReport.DegradedSlides
	report.Warnings = append(report.Warnings, enrichReport.Warnings...)

	return outline, report
}

// InitialOutline asks the model for an outline of topic. It always returns an outline; on failure
// that outline is titled with the topic, has no slides, and the error says why.
func (e *Enricher) InitialOutline(ctx context.Context, topic string) (*presentation.Outline, error) {
	fallback := &presentation.Outline{Title: topic, Slides: []presentation.Slide{}}

	text, err := e.client.Complete(ctx, outlineInstruction, topic)
	if err != nil {
		return fallback, fmt.Errorf("outline request failed: %w", err)
	}

	var outline presentation.Outline

	err = jsonrepair.Unmarshal(text, &outline)
	if err != nil {
		return fallback, fmt.Errorf("outline response: %w", err)
	}

	if outline.Title == "" {
		outline.Title = topic
	}

	if outline.Slides == nil {
		outline.Slides = []presentation.Slide{}
	}

	e.log.Info(logFmtOutlineGenerated, topic, len(outline.Slides))

	return &outline, nil
}

// Enrich replaces every slide of outline with its enriched form, in order. Slides are independent:
// the failure of one has no effect on the others.
func (e *Enricher) Enrich(ctx context.Context, topic string, outline *presentation.Outline) Report {
	var report Report

	for index, slide := range outline.Slides {
		enriched, err := e.enrichSlide(ctx, topic, slide)
		if err != nil {
			e.log.Warn(logFmtSlideDegraded, index, err)
			report.DegradedSlides = append(report.DegradedSlides, index)
			report.Warnings = append(report.Warnings, fmt.Sprintf(warnFmtSlide, index, slide.Title, err))
			outline.Slides[index] = degradeSlide(slide)

			continue
		}

		e.log.Info(logFmtSlideEnriched, index+1, len(outline.Slides), slide.Title)
		outline.Slides[index] = enriched
	}

	return report
}

func (e *Enricher) enrichSlide(ctx context.Context, topic string, slide presentation.Slide) (presentation.Slide, error) {
	// Visuals and speech stay out of the prompt; only title and content are sent.
	payload := presentation.Slide{Title: slide.Title, Content: slide.Content}

	slideJSON, err := json.Marshal(payload)
	if err != nil {
		return presentation.Slide{}, fmt.Errorf("failed to marshal slide: %w", err)
	}

	text, err := e.client.Complete(ctx, enrichmentInstruction, fmt.Sprintf(userFmtEnrichment, topic, slideJSON))
	if err != nil {
		return presentation.Slide{}, fmt.Errorf("enrichment request failed: %w", err)
	}

	var reply presentation.Slide

	err = jsonrepair.Unmarshal(text, &reply)
	if err != nil {
		return presentation.Slide{}, err
	}

	return mergeEnrichment(slide, reply), nil
}

// mergeEnrichment keeps the original title, bullets, visuals and speech, and takes only sub-points
// and details from the model reply, matched by position.
func mergeEnrichment(original, reply presentation.Slide) presentation.Slide {
	merged := presentation.Slide{
		Title:   original.Title,
		Content: make([]presentation.ContentItem, 0, len(original.Content)),
		Visuals: original.Visuals,
		Speech:  original.Speech,
	}

	for index, item := range original.Content {
		enriched, ok := item.(presentation.EnrichedItem)
		if !ok {
			enriched = presentation.Degrade(item)
		}

		if index < len(reply.Content) {
			if replyItem, ok := reply.Content[index].(presentation.EnrichedItem); ok {
				enriched.ShortSubPoints = replyItem.ShortSubPoints
				enriched.Details = replyItem.Details
			}
		}

		merged.Content = append(merged.Content, enriched)
	}

	return merged
}

func degradeSlide(slide presentation.Slide) presentation.Slide {
	degraded := presentation.Slide{
		Title:   slide.Title,
		Content: make([]presentation.ContentItem, 0, len(slide.Content)),
		Visuals: slide.Visuals,
		Speech:  slide.Speech,
	}

	for _, item := range slide.Content {
		degraded.Content = append(degraded.Content, presentation.Degrade(item))
	}

	return degraded
}
