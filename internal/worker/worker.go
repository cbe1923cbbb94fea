// Package worker provides a NATS worker that turns presentation requests into stored artifacts.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/presentation"
)

// A request covers an outline call, one call per slide and the speech calls, each bounded by the
// model client timeout.
const handleMessageTimeout = 30 * time.Minute

const (
	outlineKeySuffix = ".json"
	speechKeySuffix  = ".md"
	jsonIndent       = "  "
)

var (
	// ErrSubjectEmpty indicates that no request subject was configured.
	ErrSubjectEmpty = errors.New("request subject cannot be empty")
	// ErrTopicEmpty indicates a request without a topic.
	ErrTopicEmpty = errors.New("request topic cannot be empty")
)

// NatsWorker listens for presentation requests on a NATS subject, runs them through the generator
// and hands the speech script on to the TTS service.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	ttsSubject     string
	store          core.ArtifactStore
	generator      core.Generator
	log            *logger.Logger
	// The generator runs one request at a time.
	mu sync.Mutex
}

// NewNatsWorker creates a new instance of a NATS worker. An empty ttsSubject disables the TTS
// hand-off.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	ttsSubject string,
	store core.ArtifactStore,
	generator core.Generator,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		ttsSubject:     ttsSubject,
		store:          store,
		generator:      generator,
		log:            log,
	}, nil
}

// Run starts the worker and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for presentation requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, opts, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)
		w.reply(msg, failureEvent(event, err))

		return
	}

	reply, err := w.processRequest(ctx, event, opts)
	if err != nil {
		w.log.Error("Failed to process presentation request for workflow %s: %v", event.Header.WorkflowID, err)
		w.reply(msg, failureEvent(event, err))

		return
	}

	w.reply(msg, reply)

	err = w.publishTextProcessed(event, reply.SpeechKey)
	if err != nil {
		w.log.Error("Failed to hand off speech for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// processRequest generates the presentation and uploads its outline and speech.
func (w *NatsWorker) processRequest(
	ctx context.Context,
	event *core.PresentationRequestedEvent,
	opts presentation.Options,
) (*core.PresentationGeneratedEvent, error) {
	w.mu.Lock()
	result, err := w.generator.Process(ctx, event.Topic, opts)
	w.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to generate presentation for '%s': %w", event.Topic, err)
	}

	for _, warning := range result.Warnings {
		w.log.Warn("Workflow %s: %s", event.Header.WorkflowID, warning)
	}

	outlineData, err := json.MarshalIndent(result.Outline, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outline: %w", err)
	}

	baseKey := uuid.NewString()
	outlineKey := baseKey + outlineKeySuffix
	speechKey := baseKey + speechKeySuffix

	err = w.store.Put(ctx, outlineKey, outlineData)
	if err != nil {
		return nil, fmt.Errorf("failed to upload outline for key '%s': %w", outlineKey, err)
	}

	err = w.store.Put(ctx, speechKey, []byte(result.Speech))
	if err != nil {
		// An outline without its speech is never referenced by a reply.
		deleteErr := w.store.Delete(ctx, outlineKey)
		if deleteErr != nil {
			w.log.Warn("Failed to remove orphaned outline %s: %v", outlineKey, deleteErr)
		}

		return nil, fmt.Errorf("failed to upload speech for key '%s': %w", speechKey, err)
	}

	w.log.Info("Workflow %s: '%s' stored as %s and %s (cached: %t)",
		event.Header.WorkflowID, result.Outline.Title, outlineKey, speechKey, result.Cached)

	return &core.PresentationGeneratedEvent{
		Header:     replyHeader(event.Header),
		Title:      result.Outline.Title,
		OutlineKey: outlineKey,
		SpeechKey:  speechKey,
		Cached:     result.Cached,
		Warnings:   result.Warnings,
		Error:      "",
	}, nil
}

// publishTextProcessed tells the TTS service that a speech script is ready to be voiced.
func (w *NatsWorker) publishTextProcessed(event *core.PresentationRequestedEvent, speechKey string) error {
	if w.ttsSubject == "" {
		return nil
	}

	ttsEvent := &events.TextProcessedEvent{
		Header:            replyHeader(event.Header),
		TextKey:           speechKey,
		PNGKey:            "",
		PageNumber:        1,
		TotalPages:        1,
		Voice:             event.Voice,
		Seed:              0,
		NGL:               0,
		TopP:              0,
		RepetitionPenalty: 0,
		Temperature:       0,
	}

	data, err := json.Marshal(ttsEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal text processed event: %w", err)
	}

	err = w.natsConnection.Publish(w.ttsSubject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", w.ttsSubject, err)
	}

	return nil
}

// reply responds with the generated event when the request carries a reply subject.
func (w *NatsWorker) reply(msg *nats.Msg, replyEvent *core.PresentationGeneratedEvent) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply event: %v", err)
	}
}

func failureEvent(event *core.PresentationRequestedEvent, err error) *core.PresentationGeneratedEvent {
	var header events.EventHeader
	if event != nil {
		header = replyHeader(event.Header)
	}

	return &core.PresentationGeneratedEvent{
		Header:     header,
		Title:      "",
		OutlineKey: "",
		SpeechKey:  "",
		Cached:     false,
		Warnings:   nil,
		Error:      err.Error(),
	}
}

// parseAndValidateEvent decodes the request and resolves its options. The event is returned
// whenever it could be decoded, so failures can still be answered under its workflow.
func (w *NatsWorker) parseAndValidateEvent(
	msg *nats.Msg,
) (*core.PresentationRequestedEvent, presentation.Options, error) {
	var (
		opts presentation.Options
		req  core.PresentationRequestedEvent
	)

	err := json.Unmarshal(msg.Data, &req)
	if err != nil {
		return nil, opts, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if strings.TrimSpace(req.Topic) == "" {
		return &req, opts, ErrTopicEmpty
	}

	// Empty names leave the choice to the generator defaults.
	if req.Strategy != "" {
		opts.Strategy, err = presentation.ParseStrategy(req.Strategy)
		if err != nil {
			return &req, opts, err
		}
	}

	if req.Device != "" {
		opts.Device, err = presentation.ParseDevice(req.Device)
		if err != nil {
			return &req, opts, err
		}
	}

	return &req, opts, nil
}

// replyHeader keeps the workflow identity of a request header and stamps a new event.
func replyHeader(header events.EventHeader) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: header.WorkflowID,
		EventID:    uuid.NewString(),
		UserID:     header.UserID,
		TenantID:   header.TenantID,
	}
}
