// Package presentation defines the outline, slide and speech data model produced by the pipeline.
package presentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Strategy selects how the speech script is generated.
type Strategy string

// Device selects which language model backend serves a request.
type Device string

const (
	// StrategyChunked issues one model call per speech section.
	StrategyChunked Strategy = "chunked"
	// StrategyDirect issues a single model call over the whole outline.
	StrategyDirect Strategy = "direct"

	// DeviceLocal targets the local model server.
	DeviceLocal Device = "local"
	// DeviceRemote targets the remote OpenAI-compatible API.
	DeviceRemote Device = "remote"
)

var (
	// ErrUnknownStrategy indicates a strategy name other than direct or chunked.
	ErrUnknownStrategy = errors.New("unknown speech strategy")
	// ErrUnknownDevice indicates a device name other than local or remote.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrInvalidContentItem indicates a slide content element of an unsupported shape.
	ErrInvalidContentItem = errors.New("invalid content item")
)

// ParseStrategy converts a name to a Strategy. An empty name yields StrategyChunked.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategyChunked:
		return StrategyChunked, nil
	case StrategyDirect:
		return StrategyDirect, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// ParseDevice converts a name to a Device. An empty name yields DeviceLocal.
func ParseDevice(name string) (Device, error) {
	switch Device(strings.ToLower(strings.TrimSpace(name))) {
	case "", DeviceLocal:
		return DeviceLocal, nil
	case DeviceRemote:
		return DeviceRemote, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
}

// Options are the caller preferences for one Process call.
type Options struct {
	Strategy Strategy
	Device   Device
}

// Outline is a presentation: a display title, an optional spoken introduction and its slides.
type Outline struct {
	Title        string  `json:"title"`
	Introduction string  `json:"introduction,omitempty"`
	Slides       []Slide `json:"slides"`
}

// SlideTitles returns the slide titles in order.
func (o *Outline) SlideTitles() []string {
	titles := make([]string, 0, len(o.Slides))
	for _, slide := range o.Slides {
		titles = append(titles, slide.Title)
	}

	return titles
}

// Slide is one slide of an outline. Speech is only populated by the speech assembler.
type Slide struct {
	Title   string        `json:"title"`
	Content []ContentItem `json:"content"`
	Visuals string        `json:"visuals,omitempty"`
	Speech  string        `json:"speech,omitempty"`
}

// ContentItem is a slide bullet: either a RawBullet or an EnrichedItem.
type ContentItem interface {
	isContentItem()
}

// RawBullet is a bullet point that has not been enriched yet.
type RawBullet string

// EnrichedItem is a bullet point expanded with short sub-points and supporting detail.
type EnrichedItem struct {
	BulletPoint    string   `json:"bulletPoint"`
	ShortSubPoints []string `json:"shortSubPoints"`
	Details        []string `json:"details"`
}

func (RawBullet) isContentItem()    {}
func (EnrichedItem) isContentItem() {}

// BulletText returns the bullet text of either content shape.
func BulletText(item ContentItem) string {
	switch v := item.(type) {
	case RawBullet:
		return string(v)
	case EnrichedItem:
		return v.BulletPoint
	default:
		return ""
	}
}

// Degrade turns any content item into an EnrichedItem with no sub-points or details.
func Degrade(item ContentItem) EnrichedItem {
	return EnrichedItem{
		BulletPoint:    BulletText(item),
		ShortSubPoints: []string{},
		Details:        []string{},
	}
}

// UnmarshalJSON decodes slide content elements by shape: strings become RawBullet and objects
// carrying a bulletPoint become EnrichedItem. Other shapes are tolerated so that one odd element
// never rejects the slide: objects naming their bullet under another key are read through it,
// numbers and booleans become RawBullet, and anything else is dropped.
func (s *Slide) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title   string            `json:"title"`
		Content []json.RawMessage `json:"content"`
		Visuals json.RawMessage   `json:"visuals"`
		Speech  string            `json:"speech"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to decode slide: %w", err)
	}

	content := make([]ContentItem, 0, len(raw.Content))

	for _, element := range raw.Content {
		item, ok := decodeContentItem(element)
		if ok {
			content = append(content, item)
		}
	}

	s.Title = raw.Title
	s.Content = content
	s.Visuals = decodeVisuals(raw.Visuals)
	s.Speech = raw.Speech

	return nil
}

// bulletKeys are the keys an enriched object may carry its bullet text under, in order of preference.
var bulletKeys = []string{"bulletPoint", "point", "bullet", "text", "title"}

// DecodeContentItem decodes one content element of either canonical shape and reports
// ErrInvalidContentItem for anything else.
func DecodeContentItem(element json.RawMessage) (ContentItem, error) {
	trimmed := bytes.TrimSpace(element)
	if len(trimmed) == 0 {
		return nil, ErrInvalidContentItem
	}

	switch trimmed[0] {
	case '"':
		var bullet string

		err := json.Unmarshal(trimmed, &bullet)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidContentItem, err)
		}

		return RawBullet(bullet), nil
	case '{':
		item, found, err := decodeObjectItem(trimmed, bulletKeys[:1])
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, fmt.Errorf("%w: object without bulletPoint", ErrInvalidContentItem)
		}

		return item, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentItem, string(trimmed))
	}
}

func decodeContentItem(element json.RawMessage) (ContentItem, bool) {
	item, err := DecodeContentItem(element)
	if err == nil {
		return item, true
	}

	trimmed := bytes.TrimSpace(element)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch {
	case trimmed[0] == '{':
		item, found, objectErr := decodeObjectItem(trimmed, bulletKeys)
		if objectErr != nil || !found {
			return nil, false
		}

		return item, true
	case bytes.Equal(trimmed, []byte("true")), bytes.Equal(trimmed, []byte("false")),
		trimmed[0] == '-', trimmed[0] >= '0' && trimmed[0] <= '9':
		return RawBullet(trimmed), true
	default:
		return nil, false
	}
}

// decodeObjectItem reads an enriched item whose bullet text is under the first of keys present.
func decodeObjectItem(data []byte, keys []string) (EnrichedItem, bool, error) {
	var fields map[string]json.RawMessage

	err := json.Unmarshal(data, &fields)
	if err != nil {
		return EnrichedItem{}, false, fmt.Errorf("%w: %w", ErrInvalidContentItem, err)
	}

	for _, key := range keys {
		value, present := fields[key]
		if !present || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}

		var bullet string
		if json.Unmarshal(value, &bullet) != nil {
			continue
		}

		return EnrichedItem{
			BulletPoint:    bullet,
			ShortSubPoints: stringList(fields["shortSubPoints"]),
			Details:        stringList(fields["details"]),
		}, true, nil
	}

	return EnrichedItem{}, false, nil
}

// stringList decodes a list of strings, keeping the string elements of a mixed list.
func stringList(raw json.RawMessage) []string {
	values := []string{}
	if len(raw) == 0 {
		return values
	}

	var elements []json.RawMessage
	if json.Unmarshal(raw, &elements) != nil {
		return values
	}

	for _, element := range elements {
		var value string
		if json.Unmarshal(element, &value) == nil {
			values = append(values, value)
		}
	}

	return values
}

// decodeVisuals accepts the string form models are asked for and tolerates a list of suggestions.
func decodeVisuals(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}

	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}

	return ""
}

// Result is the output of one pipeline run.
type Result struct {
	Outline  *Outline
	Speech   string
	Cached   bool
	Warnings []string
	Location string
}
