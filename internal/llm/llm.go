package llm

import (
	"errors"
	"fmt"

	"github.com/book-expert/presentation-service/internal/config"
	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/presentation"
)

// ErrRemoteAPIKeyEmpty indicates the remote backend was selected without an API key.
var ErrRemoteAPIKeyEmpty = errors.New("llm.remote.api_key cannot be empty")

// New returns the model client the configuration describes for device.
func New(cfg config.LLMConfig, device presentation.Device) (core.ModelClient, error) {
	switch device {
	case presentation.DeviceLocal:
		return NewOllamaClient(cfg.Local.BaseURL, cfg.Local.Model, cfg.Timeout()), nil
	case presentation.DeviceRemote:
		if cfg.Remote.APIKey == "" {
			return nil, ErrRemoteAPIKeyEmpty
		}

		return NewOpenAIClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, cfg.Remote.Model, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("%w: %q", presentation.ErrUnknownDevice, device)
	}
}

// NewAll builds a client for every device the configuration can serve. The remote backend is
// skipped when it has no API key.
func NewAll(cfg config.LLMConfig) map[presentation.Device]core.ModelClient {
	clients := make(map[presentation.Device]core.ModelClient, 2)

	for _, device := range []presentation.Device{presentation.DeviceLocal, presentation.DeviceRemote} {
		client, err := New(cfg, device)
		if err != nil {
			continue
		}

		clients[device] = client
	}

	return clients
}
