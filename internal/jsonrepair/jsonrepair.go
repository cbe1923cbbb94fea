// Package jsonrepair recovers a JSON object from free-text model output.
//
// The repair is a fixed sequence of small heuristics (fence stripping, brace bounding and comma
// insertion), each exported so it can be tested on its own. It is intentionally not a JSON5 or
// relaxed-JSON parser: input the heuristics cannot fix degrades to a nil value, never a panic.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/book-expert/presentation-service/internal/core"
)

const (
	fenceJSON = "```json"
	fence     = "```"
)

// StripFences removes markdown code-fence markers.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, fenceJSON, "")
	text = strings.ReplaceAll(text, fence, "")

	return strings.TrimSpace(text)
}

// BoundObject keeps the span from the first '{' to the last '}'. It reports false when no such span
// exists.
func BoundObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start < 0 || end < start {
		return "", false
	}

	return text[start : end+1], true
}

// InsertMissingCommas adds the list separator small models tend to forget between two quoted
// strings, or two objects, separated only by whitespace. Text inside strings is left alone, escapes
// included.
func InsertMissingCommas(text string) string {
	var builder strings.Builder

	builder.Grow(len(text))

	inString, escaped := false, false

	for index := range len(text) {
		char := text[index]
		builder.WriteByte(char)

		if inString {
			switch {
			case escaped:
				escaped = false
			case char == '\\':
				escaped = true
			case char == '"':
				inString = false

				if nextSignificant(text, index+1) == '"' {
					builder.WriteByte(',')
				}
			}

			continue
		}

		switch char {
		case '"':
			inString = true
		case '}':
			if nextSignificant(text, index+1) == '{' {
				builder.WriteByte(',')
			}
		}
	}

	return builder.String()
}

// nextSignificant returns the first non-whitespace byte at or after from, or 0.
func nextSignificant(text string, from int) byte {
	for index := from; index < len(text); index++ {
		switch text[index] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return text[index]
		}
	}

	return 0
}

// Repair applies the heuristics in order and returns JSON text that parses, or false.
func Repair(raw string) (string, bool) {
	bounded, ok := BoundObject(StripFences(raw))
	if !ok {
		return "", false
	}

	if json.Valid([]byte(bounded)) {
		return bounded, true
	}

	repaired := InsertMissingCommas(bounded)
	if json.Valid([]byte(repaired)) {
		return repaired, true
	}

	return "", false
}

// Extract returns the recovered JSON value, or nil when recovery fails.
func Extract(raw string) any {
	repaired, ok := Repair(raw)
	if !ok {
		return nil
	}

	var value any

	err := json.Unmarshal([]byte(repaired), &value)
	if err != nil {
		return nil
	}

	return value
}

// Unmarshal recovers JSON from raw and decodes it into target. It returns an error wrapping
// core.ErrUnparseableContent when the heuristics are exhausted or the value does not fit target.
func Unmarshal(raw string, target any) error {
	repaired, ok := Repair(raw)
	if !ok {
		return fmt.Errorf("%w: no JSON object found", core.ErrUnparseableContent)
	}

	err := json.Unmarshal([]byte(repaired), target)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrUnparseableContent, err)
	}

	return nil
}
