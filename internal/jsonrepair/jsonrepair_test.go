package jsonrepair_test

import (
	"errors"
	"testing"

	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/jsonrepair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "fenced JSON",
			raw:  "```json\n{\"title\": \"Cloud\"}\n```",
			want: map[string]any{"title": "Cloud"},
		},
		{
			name: "JSON preceded by prose",
			raw:  "Sure! Here is your outline:\n{\"title\": \"Cloud\", \"slides\": []}\nHope it helps.",
			want: map[string]any{"title": "Cloud", "slides": []any{}},
		},
		{
			name: "missing comma between two strings",
			raw:  "```json\n{\"a\": \"x\" \"b\": \"y\"}\n```",
			want: map[string]any{"a": "x", "b": "y"},
		},
		{
			name: "missing commas inside a list",
			raw:  "{\"content\": [\"one\"\n \"two\"\n \"three\"]}",
			want: map[string]any{"content": []any{"one", "two", "three"}},
		},
		{
			name: "no JSON at all",
			raw:  "no json here",
			want: nil,
		},
		{
			name: "irrecoverably broken",
			raw:  "{\"title\": \"Cloud\", \"slides\": [ {\"title\": }",
			want: nil,
		},
		{
			name: "reversed braces",
			raw:  "} nothing {",
			want: nil,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.want, jsonrepair.Extract(testCase.raw))
		})
	}
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a": 1}`, jsonrepair.StripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, jsonrepair.StripFences("```\n{\"a\": 1}```"))
}

func TestBoundObject(t *testing.T) {
	t.Parallel()

	bounded, ok := jsonrepair.BoundObject("text {\"a\": {\"b\": 1}} trailing")
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, bounded)

	_, ok = jsonrepair.BoundObject("no braces")
	assert.False(t, ok)
}

func TestInsertMissingCommas(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `["x", "y"]`, jsonrepair.InsertMissingCommas(`["x" "y"]`))
	assert.Equal(t, "[{\"a\": 1},\n{\"b\": 2}]", jsonrepair.InsertMissingCommas("[{\"a\": 1}\n{\"b\": 2}]"))
	assert.Equal(t, `["x", "y"]`, jsonrepair.InsertMissingCommas(`["x", "y"]`))
	assert.Equal(t, `["C:\\", "b"]`, jsonrepair.InsertMissingCommas(`["C:\\" "b"]`))
	assert.Equal(t, `["say \"hi\" now", "b"]`, jsonrepair.InsertMissingCommas(`["say \"hi\" now" "b"]`))
	assert.Equal(t, `{"a": "x y" , "b": ""}`, jsonrepair.InsertMissingCommas(`{"a": "x y" , "b": ""}`))
	assert.Equal(t, `{"a": "b",
"c": 1}`, jsonrepair.InsertMissingCommas(`{"a": "b"
"c": 1}`))
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	var target struct {
		Title string `json:"title"`
	}

	err := jsonrepair.Unmarshal("Here you go: {\"title\": \"Edge AI\"}", &target)
	require.NoError(t, err)
	assert.Equal(t, "Edge AI", target.Title)

	err = jsonrepair.Unmarshal("I cannot help with that.", &target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnparseableContent))

	err = jsonrepair.Unmarshal(`{"title": 42}`, &target)
	require.ErrorIs(t, err, core.ErrUnparseableContent)
}
