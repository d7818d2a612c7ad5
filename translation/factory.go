package translation

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGoogle = "google"
	ProviderLLM    = "llm"
	ProviderStub   = "stub"
)

// Settings select and configure a translation provider
type Settings struct {
	Provider string
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New builds the Translator for settings.Provider
func New(settings Settings) (Translator, error) {
	switch strings.ToLower(settings.Provider) {
	case ProviderGoogle, "":
		return NewGoogleClient(settings.Endpoint, settings.Timeout), nil
	case ProviderLLM:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("llm translation provider requires TRANSLATION_API_KEY or OPENAI_API_KEY")
		}
		return NewLLMClient(settings.APIKey, settings.Model, settings.Endpoint, settings.Timeout), nil
	case ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", settings.Provider)
	}
}

// NewFactory returns a Factory that builds a new client from settings on each call
func NewFactory(settings Settings) Factory {
	return func() (Translator, error) {
		return New(settings)
	}
}
