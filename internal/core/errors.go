package core

import "errors"

var (
	// ErrUnavailable indicates the model endpoint could not be reached or returned a non-success status.
	ErrUnavailable = errors.New("model endpoint unavailable")
	// ErrMalformedResponse indicates the response envelope is missing the generated content.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrUnparseableContent indicates no JSON value could be recovered from the model output.
	ErrUnparseableContent = errors.New("unparseable model content")
	// ErrEmptyTopic indicates the topic was empty or whitespace only.
	ErrEmptyTopic = errors.New("topic cannot be empty")
	// ErrCacheUnwritable indicates the presentation cache could not persist an entry.
	ErrCacheUnwritable = errors.New("presentation cache is not writable")
)
