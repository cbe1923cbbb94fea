// Package speech assembles a TTS-ready speech script from an enriched outline.
//
// A script is plain text carrying two kinds of control markers, [PAUSE=n] and [SLIDE CHANGE]. The
// helpers in markers.go are the only place that parses them.
package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/presentation"
)

// Log and warning messages.
const (
	logFmtAssembling      = "Assembling %s speech for '%s' (%d slides)"
	logFmtSectionFailed   = "Speech section %s failed: %v"
	logFmtAssembled       = "Speech for '%s' assembled: %d characters, %d sections missing"
	warnFmtSection        = "speech section %s missing: %v"
	sectionIntroduction   = "introduction"
	sectionConclusion     = "conclusion"
	sectionFmtSlide       = "slide %d (%s)"
	sectionSeparator      = "\n\n"
	slideTitleSeparator   = ", "
	keyPointFmt           = "- %s"
	keyPointWithDetailFmt = "- %s - %s"
)

// Limits bound the slide content sent with each chunked section request.
type Limits struct {
	DetailLimit     int
	DetailsPerPoint int
	PointsPerSlide  int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{DetailLimit: 200, DetailsPerPoint: 2, PointsPerSlide: 5}
}

// Report lists the sections that could not be generated.
type Report struct {
	MissingSections []string
	Warnings        []string
}

func (r *Report) missing(section string, err error) {
	r.MissingSections = append(r.MissingSections, section)
	r.Warnings = append(r.Warnings, fmt.Sprintf(warnFmtSection, section, err))
}

// Assembler generates speech scripts through a model client.
type Assembler struct {
	client core.ModelClient
	log    *logger.Logger
	limits Limits
}

// New creates an Assembler. Non-positive limits are replaced by their defaults.
func New(client core.ModelClient, log *logger.Logger, limits Limits) *Assembler {
	defaults := DefaultLimits()

	if limits.DetailLimit <= 0 {
		limits.DetailLimit = defaults.DetailLimit
	}

	if limits.DetailsPerPoint <= 0 {
		limits.DetailsPerPoint = defaults.DetailsPerPoint
	}

	if limits.PointsPerSlide <= 0 {
		limits.PointsPerSlide = defaults.PointsPerSlide
	}

	return &Assembler{client: client, log: log, limits: limits}
}

// Assemble builds the script for outline with the given strategy. It also records the spoken
// introduction and per-slide narration on outline.
func (a *Assembler) Assemble(
	ctx context.Context,
	outline *presentation.Outline,
	strategy presentation.Strategy,
) (string, Report) {
	a.log.Info(logFmtAssembling, strategy, outline.Title, len(outline.Slides))

	var (
		script string
		report Report
	)

	if strategy == presentation.StrategyDirect {
		script, report = a.Direct(ctx, outline)
	} else {
		script, report = a.Chunked(ctx, outline)
	}

	a.log.Info(logFmtAssembled, outline.Title, len(script), len(report.MissingSections))

	return script, report
}

// Direct asks for the whole script in a single call. The reply is used as is apart from
// canonicalizing its markers; when the call fails the script is empty.
func (a *Assembler) Direct(ctx context.Context, outline *presentation.Outline) (string, Report) {
	var report Report

	outlineJSON, err := json.MarshalIndent(outline, "", "  ")
	if err != nil {
		report.missing("script", fmt.Errorf("failed to marshal outline: %w", err))

		return "", report
	}

	text, err := a.client.Complete(ctx, directInstruction, string(outlineJSON))
	if err != nil {
		a.log.Warn(logFmtSectionFailed, "script", err)
		report.missing("script", err)

		return "", report
	}

	script := Sanitize(strings.TrimSpace(text))
	recordDirect(outline, script)

	return script, report
}

// recordDirect copies the introduction and, when the script has one part per slide, the slide
// narration back onto outline.
func recordDirect(outline *presentation.Outline, script string) {
	parts := SplitSlides(script)

	introduction, _, found := strings.Cut(parts[0], discussionPrefix)
	if !found {
		introduction = parts[0]
	}

	outline.Introduction = strings.TrimSpace(introduction)

	if len(parts) != len(outline.Slides) {
		return
	}

	for index := range outline.Slides {
		part := parts[index]
		if index == 0 && found {
			part = part[len(introduction):]
		}

		outline.Slides[index].Speech = strings.TrimSpace(part)
	}
}

// Chunked generates the introduction, each slide section and the conclusion with separate calls and
// joins them with blank lines. Every slide but the last is followed by a transition ending in a
// pause and a slide change, whether or not its own section could be generated. Titles are reduced to
// plain narration before they are quoted, so the assembler places every marker.
func (a *Assembler) Chunked(ctx context.Context, outline *presentation.Outline) (string, Report) {
	var report Report

	title := Plain(outline.Title)
	slideTitles := make([]string, 0, len(outline.Slides))

	for _, slide := range outline.Slides {
		slideTitles = append(slideTitles, Plain(slide.Title))
	}

	titles := strings.Join(slideTitles, slideTitleSeparator)
	blocks := make([]string, 0, len(outline.Slides)+2)

	introduction, err := a.section(ctx, introductionInstruction,
		fmt.Sprintf(introductionUserFmt, title, titles, title))
	if err != nil {
		a.log.Warn(logFmtSectionFailed, sectionIntroduction, err)
		report.missing(sectionIntroduction, err)

		introduction = fmt.Sprintf(greetingFmt, title)
	}

	outline.Introduction = introduction
	blocks = append(blocks, introduction)

	for index := range outline.Slides {
		slide := &outline.Slides[index]

		text, sectionErr := a.section(ctx, sectionInstruction,
			fmt.Sprintf(sectionUserFmt, slideTitles[index], a.keyPoints(*slide)))
		if sectionErr != nil {
			name := fmt.Sprintf(sectionFmtSlide, index, slideTitles[index])
			a.log.Warn(logFmtSectionFailed, name, sectionErr)
			report.missing(name, sectionErr)

			text = ""
		}

		slide.Speech = text

		if index < len(outline.Slides)-1 {
			transition := fmt.Sprintf(transitionFmt, slideTitles[index+1], Pause(1), SlideChange)
			text = strings.TrimSpace(text + " " + transition)
		}

		if text != "" {
			blocks = append(blocks, text)
		}
	}

	conclusion, err := a.section(ctx, conclusionInstruction,
		fmt.Sprintf(conclusionUserFmt, title, titles))
	if err != nil {
		a.log.Warn(logFmtSectionFailed, sectionConclusion, err)
		report.missing(sectionConclusion, err)

		conclusion = ""
	}

	blocks = append(blocks, withClosing(conclusion))

	return strings.Join(blocks, sectionSeparator), report
}

// section runs one chunked call. Slide changes are only placed by the assembler, so any the model
// produced are dropped.
func (a *Assembler) section(ctx context.Context, instruction, userText string) (string, error) {
	text, err := a.client.Complete(ctx, instruction, userText)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(strings.ReplaceAll(Sanitize(text), SlideChange, ""))
	if text == "" {
		return "", fmt.Errorf("empty section: %w", core.ErrMalformedResponse)
	}

	return text, nil
}

// keyPoints renders the bounded slide content sent with a section request.
func (a *Assembler) keyPoints(slide presentation.Slide) string {
	points := slide.Content
	if len(points) > a.limits.PointsPerSlide {
		points = points[:a.limits.PointsPerSlide]
	}

	lines := make([]string, 0, len(points))

	for _, item := range points {
		enriched, ok := item.(presentation.EnrichedItem)
		if !ok || len(enriched.Details) == 0 {
			lines = append(lines, fmt.Sprintf(keyPointFmt, truncate(presentation.BulletText(item), a.limits.DetailLimit)))

			continue
		}

		details := enriched.Details
		if len(details) > a.limits.DetailsPerPoint {
			details = details[:a.limits.DetailsPerPoint]
		}

		capped := make([]string, 0, len(details))
		for _, detail := range details {
			capped = append(capped, truncate(detail, a.limits.DetailLimit))
		}

		lines = append(lines, fmt.Sprintf(keyPointWithDetailFmt, enriched.BulletPoint, strings.Join(capped, " ")))
	}

	return strings.Join(lines, "\n")
}

// withClosing makes sure the conclusion ends with the fixed closing line.
func withClosing(conclusion string) string {
	if strings.Contains(conclusion, closingLine) {
		return conclusion
	}

	return strings.TrimSpace(conclusion + " " + closingLine)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit])
}
