package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/book-expert/presentation-service/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newModelServer fakes the Ollama chat and version endpoints.
func newModelServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path == "/api/version" {
			_, _ = writer.Write([]byte(`{"version": "0.5.0"}`))

			return
		}

		calls.Add(1)

		var chat struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}

		if err := json.NewDecoder(request.Body).Decode(&chat); err != nil || len(chat.Messages) == 0 {
			http.Error(writer, "bad request", http.StatusBadRequest)

			return
		}

		userText := chat.Messages[len(chat.Messages)-1].Content
		content := `{"title": "Edge AI", "slides": [{"title": "NPUs", "content": ["Low power"]}]}`

		switch {
		case strings.HasPrefix(userText, "topic: "):
			content = `{"title": "NPUs", "content": [{"bulletPoint": "Low power", "shortSubPoints": ["mW"], "details": ["d"]}]}`
		case strings.HasPrefix(userText, "Title: "), strings.HasPrefix(userText, "Slide Title: "):
			content = "Narration. [PAUSE=1] More."
		}

		_ = json.NewEncoder(writer).Encode(map[string]any{
			"model":   "qwen2.5:7b",
			"message": map[string]string{"role": "assistant", "content": content},
			"done":    true,
		})
	}))
	t.Cleanup(server.Close)

	return server
}

// writeConfig writes a project.toml that keeps every path inside a temporary directory.
func writeConfig(t *testing.T, modelURL string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	data := fmt.Sprintf(`
[llm.local]
base_url = %q
model = "qwen2.5:7b"

[cache]
dir = %q

[paths]
base_logs_dir = %q
output_dir = %q
`, modelURL, cacheDir, filepath.Join(dir, "logs"), filepath.Join(dir, "output"))

	path := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	return path, cacheDir
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	flags, err := parseFlags([]string{"--topic", "Edge AI, NPUs", "--strategy", "direct", "--device", "remote", "--verbose"})
	require.NoError(t, err)

	assert.Equal(t, "Edge AI, NPUs", flags.topic)
	assert.Equal(t, "direct", flags.strategy)
	assert.Equal(t, "remote", flags.device)
	assert.True(t, flags.verbose)

	_, err = parseFlags([]string{"--unknown"})
	require.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		flags   appFlags
		wantErr error
	}{
		{name: "no action", flags: appFlags{}, wantErr: errNoAction},
		{name: "topic", flags: appFlags{topic: "Edge AI"}},
		{name: "list", flags: appFlags{list: true}},
		{name: "delete", flags: appFlags{delete: "Edge_AI_1234abcd"}},
		{name: "topic and clean", flags: appFlags{topic: "Edge AI", clean: true}, wantErr: errConflictingFlag},
		{name: "list and health", flags: appFlags{list: true, health: true}, wantErr: errConflictingFlag},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := validateFlags(testCase.flags)
			if testCase.wantErr == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestRun_GenerateListAndDelete(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := newModelServer(t, &calls)
	configPath, cacheDir := writeConfig(t, server.URL)

	var stdout bytes.Buffer

	require.NoError(t, run([]string{"--config", configPath, "--topic", "Edge AI, NPUs"}, &stdout))
	assert.Contains(t, stdout.String(), "Edge AI: "+filepath.Join(cacheDir, cache.FolderName("Edge AI")))
	assert.Contains(t, stdout.String(), "Served from cache: false")

	generated := calls.Load()
	assert.Positive(t, generated)

	speech, err := os.ReadFile(filepath.Join(filepath.Dir(configPath), "output", cache.SpeechFile))
	require.NoError(t, err)
	assert.Contains(t, string(speech), "Narration.")

	stdout.Reset()
	require.NoError(t, run([]string{"--config", configPath, "--topic", "edge ai"}, &stdout))
	assert.Contains(t, stdout.String(), "Served from cache: true")
	assert.Equal(t, generated, calls.Load())

	stdout.Reset()
	require.NoError(t, run([]string{"--config", configPath, "--list"}, &stdout))
	assert.Equal(t, cache.FolderName("Edge AI")+"\tEdge AI\n", stdout.String())

	stdout.Reset()
	require.NoError(t, run([]string{"--config", configPath, "--delete", cache.FolderName("Edge AI")}, &stdout))
	assert.NoDirExists(t, filepath.Join(cacheDir, cache.FolderName("Edge AI")))

	stdout.Reset()
	require.NoError(t, run([]string{"--config", configPath, "--list"}, &stdout))
	assert.Equal(t, msgCacheEmpty+"\n", stdout.String())
}

func TestRun_Clean(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	configPath, cacheDir := writeConfig(t, newModelServer(t, &calls).URL)
	broken := filepath.Join(cacheDir, cache.FolderName("Broken"))
	require.NoError(t, os.MkdirAll(broken, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(broken, cache.OutlineFile), []byte(`{"title": "Broken", "slides": []}`), 0o600))

	var stdout bytes.Buffer

	require.NoError(t, run([]string{"--config", configPath, "--clean"}, &stdout))
	assert.Equal(t, "Removed "+cache.FolderName("Broken")+"\n", stdout.String())
	assert.NoDirExists(t, broken)
	assert.Zero(t, calls.Load())
}

func TestRun_HealthCheck(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	configPath, _ := writeConfig(t, newModelServer(t, &calls).URL)

	var stdout bytes.Buffer

	require.NoError(t, run([]string{"--config", configPath, "--health"}, &stdout))
	assert.Equal(t, msgServiceHealthy+"\n", stdout.String())
}

func TestRun_RejectsBadOptions(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	configPath, _ := writeConfig(t, newModelServer(t, &calls).URL)

	var stdout bytes.Buffer

	require.Error(t, run([]string{"--config", configPath, "--topic", "Edge AI", "--strategy", "verbose"}, &stdout))
	require.Error(t, run([]string{"--config", configPath, "--topic", "Edge AI", "--device", "gpu"}, &stdout))
	require.ErrorIs(t, run([]string{"--config", configPath}, &stdout), errNoAction)
	assert.Zero(t, calls.Load())
}
