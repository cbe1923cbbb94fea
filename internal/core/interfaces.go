// Package core defines the interfaces and error taxonomy shared by the presentation pipeline.
package core

import (
	"context"

	"github.com/book-expert/presentation-service/internal/presentation"
)

// ModelClient sends a system instruction and user text to a language model and returns the
// generated text. Implementations do not retry; retry policy belongs to callers.
type ModelClient interface {
	Complete(ctx context.Context, systemInstruction, userText string) (string, error)
}

// ArtifactStore defines the interface for handing generated artifacts to downstream consumers.
type ArtifactStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Generator turns a topic into an enriched outline and a speech script.
type Generator interface {
	Process(ctx context.Context, topic string, opts presentation.Options) (*presentation.Result, error)
}
