// Package worker_test tests the NATS worker for the presentation service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/presentation-service/internal/cache"
	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/objectstore"
	"github.com/book-expert/presentation-service/internal/pipeline"
	"github.com/book-expert/presentation-service/internal/presentation"
	"github.com/book-expert/presentation-service/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	requestSubject = "test.presentation.requested"
	ttsSubject     = "test.text.processed"
	requestTimeout = 5 * time.Second
)

var (
	errMockGenerate = errors.New("mock generate error")
	errMockPut      = errors.New("mock put error")
)

// mockArtifactStore is an in-memory ArtifactStore. Puts of keys ending in failSuffix fail.
type mockArtifactStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failSuffix string
	deleted    []string
}

func (m *mockArtifactStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ErrArtifactNotFound
	}

	return data, nil
}

func (m *mockArtifactStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSuffix != "" && strings.HasSuffix(key, m.failSuffix) {
		return errMockPut
	}

	m.objects[key] = data

	return nil
}

func (m *mockArtifactStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return objectstore.ErrArtifactNotFound
	}

	delete(m.objects, key)
	m.deleted = append(m.deleted, key)

	return nil
}

func (m *mockArtifactStore) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.deleted...)
}

func (m *mockArtifactStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

// mockGenerator records the requests it serves.
type mockGenerator struct {
	mu         sync.Mutex
	shouldFail bool
	topics     []string
	options    []presentation.Options
}

func (m *mockGenerator) Process(
	_ context.Context,
	topic string,
	opts presentation.Options,
) (*presentation.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topics = append(m.topics, topic)
	m.options = append(m.options, opts)

	if m.shouldFail {
		return nil, errMockGenerate
	}

	return &presentation.Result{
		Outline:  &presentation.Outline{Title: "Edge AI", Slides: []presentation.Slide{}},
		Speech:   "Hello everyone. [PAUSE=1] Thank you for your attention.",
		Cached:   true,
		Warnings: []string{"slide 1 (NPUs) not enriched"},
		Location: "/tmp/cache/Edge_AI_1234abcd",
	}, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.topics)
}

func (m *mockGenerator) recorded() ([]string, []presentation.Options) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.topics...), append([]presentation.Options(nil), m.options...)
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

// startWorker runs workerInstance until the test ends.
func startWorker(t *testing.T, workerInstance *worker.NatsWorker) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})
}

// request sends event and decodes the reply, retrying until the worker has subscribed.
func request(t *testing.T, natsConnection *nats.Conn, data []byte) core.PresentationGeneratedEvent {
	t.Helper()

	var replyMsg *nats.Msg

	require.Eventually(t, func() bool {
		msg, err := natsConnection.Request(requestSubject, data, requestTimeout)
		if err != nil {
			return false
		}

		replyMsg = msg

		return true
	}, 10*time.Second, 50*time.Millisecond)

	var reply core.PresentationGeneratedEvent

	require.NoError(t, json.Unmarshal(replyMsg.Data, &reply))

	return reply
}

func newRequest(t *testing.T, topic, strategy, device string) ([]byte, *core.PresentationRequestedEvent) {
	t.Helper()

	event := &core.PresentationRequestedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "user-1",
			TenantID:   "",
		},
		Topic:    topic,
		Strategy: strategy,
		Device:   device,
		Voice:    "female1",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	return data, event
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)
	store := &mockArtifactStore{objects: make(map[string][]byte)}
	generator := &mockGenerator{}

	ttsSub, err := natsConnection.SubscribeSync(ttsSubject)
	require.NoError(t, err)
	require.NoError(t, natsConnection.Flush())

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, requestSubject, ttsSubject, store, generator, newTestLogger(t),
	)
	require.NoError(t, err)
	startWorker(t, workerInstance)

	data, requestEvent := newRequest(t, "Edge AI", "direct", "remote")
	reply := request(t, natsConnection, data)

	require.Empty(t, reply.Error)
	assert.Equal(t, "Edge AI", reply.Title)
	assert.True(t, reply.Cached)
	assert.Equal(t, []string{"slide 1 (NPUs) not enriched"}, reply.Warnings)
	assert.Equal(t, requestEvent.Header.WorkflowID, reply.Header.WorkflowID)
	assert.Equal(t, "user-1", reply.Header.UserID)
	assert.NotEqual(t, requestEvent.Header.EventID, reply.Header.EventID)
	assert.True(t, strings.HasSuffix(reply.OutlineKey, ".json"))
	assert.True(t, strings.HasSuffix(reply.SpeechKey, ".md"))

	speechData, err := store.Get(context.Background(), reply.SpeechKey)
	require.NoError(t, err)
	assert.Equal(t, "Hello everyone. [PAUSE=1] Thank you for your attention.", string(speechData))

	outlineData, err := store.Get(context.Background(), reply.OutlineKey)
	require.NoError(t, err)
	assert.Contains(t, string(outlineData), `"title": "Edge AI"`)

	topics, options := generator.recorded()
	assert.Equal(t, []string{"Edge AI"}, topics)
	require.Len(t, options, 1)
	assert.Equal(t, presentation.Options{
		Strategy: presentation.StrategyDirect,
		Device:   presentation.DeviceRemote,
	}, options[0])

	ttsMsg, err := ttsSub.NextMsg(requestTimeout)
	require.NoError(t, err)

	var ttsEvent events.TextProcessedEvent

	require.NoError(t, json.Unmarshal(ttsMsg.Data, &ttsEvent))
	assert.Equal(t, reply.SpeechKey, ttsEvent.TextKey)
	assert.Equal(t, "female1", ttsEvent.Voice)
	assert.Equal(t, requestEvent.Header.WorkflowID, ttsEvent.Header.WorkflowID)
}

func TestMessageHandler_InvalidRequests(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)
	store := &mockArtifactStore{objects: make(map[string][]byte)}
	generator := &mockGenerator{}

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, requestSubject, "", store, generator, newTestLogger(t),
	)
	require.NoError(t, err)
	startWorker(t, workerInstance)

	emptyTopic, _ := newRequest(t, "   ", "", "")
	badStrategy, _ := newRequest(t, "Edge AI", "verbose", "")
	badDevice, _ := newRequest(t, "Edge AI", "", "gpu")

	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{name: "malformed json", data: []byte("{not json"), wantErr: "failed to unmarshal event"},
		{name: "empty topic", data: emptyTopic, wantErr: worker.ErrTopicEmpty.Error()},
		{name: "unknown strategy", data: badStrategy, wantErr: presentation.ErrUnknownStrategy.Error()},
		{name: "unknown device", data: badDevice, wantErr: presentation.ErrUnknownDevice.Error()},
	}

	for _, testCase := range tests {
		reply := request(t, natsConnection, testCase.data)
		assert.Contains(t, reply.Error, testCase.wantErr, testCase.name)
		assert.Empty(t, reply.SpeechKey, testCase.name)
	}

	assert.Zero(t, generator.calls())
	assert.Zero(t, store.count())
}

func TestMessageHandler_GeneratorFailure(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)
	store := &mockArtifactStore{objects: make(map[string][]byte)}
	generator := &mockGenerator{shouldFail: true}

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, requestSubject, ttsSubject, store, generator, newTestLogger(t),
	)
	require.NoError(t, err)
	startWorker(t, workerInstance)

	data, requestEvent := newRequest(t, "Edge AI", "", "")
	reply := request(t, natsConnection, data)

	assert.Contains(t, reply.Error, errMockGenerate.Error())
	assert.Equal(t, requestEvent.Header.WorkflowID, reply.Header.WorkflowID)
	_, options := generator.recorded()
	require.Len(t, options, 1)
	assert.Equal(t, presentation.Options{}, options[0])
	assert.Zero(t, store.count())
}

func TestMessageHandler_SpeechUploadFailureRemovesOutline(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)
	store := &mockArtifactStore{objects: make(map[string][]byte), failSuffix: ".md"}
	generator := &mockGenerator{}

	ttsSub, err := natsConnection.SubscribeSync(ttsSubject)
	require.NoError(t, err)
	require.NoError(t, natsConnection.Flush())

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, requestSubject, ttsSubject, store, generator, newTestLogger(t),
	)
	require.NoError(t, err)
	startWorker(t, workerInstance)

	data, _ := newRequest(t, "Edge AI", "", "")
	reply := request(t, natsConnection, data)

	assert.Contains(t, reply.Error, errMockPut.Error())
	assert.Empty(t, reply.OutlineKey)
	assert.Zero(t, store.count())

	deleted := store.deletedKeys()
	require.Len(t, deleted, 1)
	assert.True(t, strings.HasSuffix(deleted[0], ".json"))

	_, err = ttsSub.NextMsg(200 * time.Millisecond)
	require.ErrorIs(t, err, nats.ErrTimeout)
}

func TestNewNatsWorker_RequiresSubject(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, "", ttsSubject, nil, nil, nil)
	require.ErrorIs(t, err, worker.ErrSubjectEmpty)
}

// echoModel answers every model call with text that the pipeline can always use.
type echoModel struct{}

func (echoModel) Complete(_ context.Context, _, userText string) (string, error) {
	if strings.HasPrefix(userText, "topic: ") || strings.HasPrefix(userText, "Title: ") ||
		strings.HasPrefix(userText, "Slide Title: ") {
		return "Narration. [PAUSE=1] More narration.", nil
	}

	return `{"title": "Edge AI", "slides": [{"title": "NPUs", "content": ["Low power"]}]}`, nil
}

func TestMessageHandler_EndToEnd(t *testing.T) {
	t.Parallel()

	natsConnection := createTestNatsClient(t)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "PRESENTATIONS")
	require.NoError(t, err)

	log := newTestLogger(t)
	generator := pipeline.New(
		map[presentation.Device]core.ModelClient{presentation.DeviceLocal: echoModel{}},
		cache.New(filepath.Join(t.TempDir(), "cache"), log),
		log,
		pipeline.Settings{},
	)

	workerInstance, err := worker.NewNatsWorker(natsConnection, requestSubject, ttsSubject, store, generator, log)
	require.NoError(t, err)
	startWorker(t, workerInstance)

	data, _ := newRequest(t, "Edge AI", "", "")
	first := request(t, natsConnection, data)
	require.Empty(t, first.Error)
	assert.False(t, first.Cached)
	assert.Equal(t, "Edge AI", first.Title)

	speechData, err := store.Get(context.Background(), first.SpeechKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(speechData), "Narration."))

	outlineData, err := store.Get(context.Background(), first.OutlineKey)
	require.NoError(t, err)

	var outline presentation.Outline

	require.NoError(t, json.Unmarshal(outlineData, &outline))
	require.Len(t, outline.Slides, 1)
	assert.Equal(t, presentation.EnrichedItem{
		BulletPoint:    "Low power",
		ShortSubPoints: []string{},
		Details:        []string{},
	}, outline.Slides[0].Content[0])

	second := request(t, natsConnection, data)
	require.Empty(t, second.Error)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.SpeechKey, second.SpeechKey)

	secondSpeech, err := store.Get(context.Background(), second.SpeechKey)
	require.NoError(t, err)
	assert.Equal(t, speechData, secondSpeech)
}
