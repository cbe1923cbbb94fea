package speech

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SlideChange marks the point in a script where the next slide is shown.
const SlideChange = "[SLIDE CHANGE]"

// MarkerKind identifies a control marker.
type MarkerKind int

const (
	// MarkerPause is a [PAUSE=n] marker.
	MarkerPause MarkerKind = iota
	// MarkerSlideChange is a [SLIDE CHANGE] marker.
	MarkerSlideChange
)

// Marker is one control marker found in a script. Start and End are byte offsets.
type Marker struct {
	Kind    MarkerKind
	Seconds int
	Start   int
	End     int
}

// Segment is a run of narration between pauses. PauseAfter is the pause that follows it.
type Segment struct {
	Slide      int
	Text       string
	PauseAfter time.Duration
}

var (
	markerPattern = regexp.MustCompile(`\[(?:PAUSE=(\d+)|SLIDE CHANGE)\]`)
	// Variants models produce for the same markers: other casing, inner spaces, underscores.
	loosePausePattern = regexp.MustCompile(`(?i)\[\s*pause\s*[=:]\s*(\d+)\s*\]`)
	looseSlidePattern = regexp.MustCompile(`(?i)\[\s*slide[\s_-]*change\s*\]`)
	spacePattern      = regexp.MustCompile(`[ \t]+`)
)

// Pause returns the marker for a pause of the given number of seconds.
func Pause(seconds int) string {
	return fmt.Sprintf("[PAUSE=%d]", seconds)
}

// Scan returns the markers of script in order.
func Scan(script string) []Marker {
	matches := markerPattern.FindAllStringSubmatchIndex(script, -1)
	markers := make([]Marker, 0, len(matches))

	for _, match := range matches {
		marker := Marker{Kind: MarkerSlideChange, Start: match[0], End: match[1]}

		if match[2] >= 0 {
			seconds, err := strconv.Atoi(script[match[2]:match[3]])
			if err != nil {
				continue
			}

			marker.Kind = MarkerPause
			marker.Seconds = seconds
		}

		markers = append(markers, marker)
	}

	return markers
}

// SplitSlides splits script at every slide change and trims each part.
func SplitSlides(script string) []string {
	parts := strings.Split(script, SlideChange)
	for index, part := range parts {
		parts[index] = strings.TrimSpace(part)
	}

	return parts
}

// Strip removes every marker from script and collapses the spaces left behind.
func Strip(script string) string {
	stripped := markerPattern.ReplaceAllString(script, " ")
	lines := strings.Split(stripped, "\n")

	for index, line := range lines {
		lines[index] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Plain turns text that is spoken or quoted by the assembler, such as a slide title, into narration
// with no markers and no square brackets.
func Plain(text string) string {
	return Strip(Sanitize(text))
}

// Segments splits script into narration runs, numbered by slide, each carrying the pause that
// follows it. Empty runs are dropped.
func Segments(script string) []Segment {
	var segments []Segment

	for slide, part := range SplitSlides(script) {
		offset := 0

		for _, marker := range Scan(part) {
			if marker.Kind != MarkerPause {
				continue
			}

			segments = appendSegment(segments, slide, part[offset:marker.Start], time.Duration(marker.Seconds)*time.Second)
			offset = marker.End
		}

		segments = appendSegment(segments, slide, part[offset:], 0)
	}

	return segments
}

func appendSegment(segments []Segment, slide int, text string, pause time.Duration) []Segment {
	text = Strip(text)
	if text == "" {
		if pause > 0 && len(segments) > 0 && segments[len(segments)-1].Slide == slide {
			segments[len(segments)-1].PauseAfter += pause
		}

		return segments
	}

	return append(segments, Segment{Slide: slide, Text: text, PauseAfter: pause})
}

// Sanitize rewrites marker variants to their canonical form and turns every other square bracket
// into a parenthesis, so only real markers remain bracketed.
func Sanitize(text string) string {
	text = loosePausePattern.ReplaceAllString(text, "[PAUSE=$1]")
	text = looseSlidePattern.ReplaceAllString(text, SlideChange)

	var builder strings.Builder

	builder.Grow(len(text))

	offset := 0

	for _, marker := range Scan(text) {
		builder.WriteString(neutralize(text[offset:marker.Start]))
		builder.WriteString(text[marker.Start:marker.End])
		offset = marker.End
	}

	builder.WriteString(neutralize(text[offset:]))

	return builder.String()
}

var bracketReplacer = strings.NewReplacer("[", "(", "]", ")")

func neutralize(text string) string {
	return bracketReplacer.Replace(text)
}
