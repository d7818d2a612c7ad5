package captioner

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
	ProviderStub        = "stub"
)

// Settings select and configure a provider
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

// New builds the Captioner for settings.Provider
func New(settings Settings) (Captioner, error) {
	switch strings.ToLower(settings.Provider) {
	case ProviderHuggingFace, "":
		return NewHuggingFaceClient(settings.APIKey, settings.Model, settings.Endpoint, settings.Timeout), nil
	case ProviderOpenAI:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("openai caption provider requires OPENAI_API_KEY or CAPTION_API_KEY")
		}
		return NewOpenAIClient(settings.APIKey, settings.Model, settings.Endpoint, settings.Timeout), nil
	case ProviderGemini:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("gemini caption provider requires GEMINI_API_KEY or CAPTION_API_KEY")
		}
		return NewGeminiClient(settings.APIKey, settings.Model, settings.Endpoint, settings.Timeout), nil
	case ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, fmt.Errorf("unknown caption provider %q", settings.Provider)
	}
}
