// Package translation translates English captions into the supported languages.
package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/captionsys/metrics"
	"github.com/camden-git/captionsys/models"
)

// ErrEmptyTranslation is returned by providers that answer with no text
var ErrEmptyTranslation = errors.New("translation: empty result")

const sourceLanguage = "en"

// Translator translates text between two language codes
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Factory builds a fresh Translator
type Factory func() (Translator, error)

// Service wraps a Translator with the retry and fallback policy used for captions.
// Translate never fails: when both attempts fail the English text is returned.
type Service struct {
	mu      sync.Mutex
	current Translator
	factory Factory
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewService uses initial for the first attempt and factory for the retry client.
func NewService(initial Translator, factory Factory, timeout time.Duration, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		current: initial,
		factory: factory,
		timeout: timeout,
		log:     logger,
	}
}

func (s *Service) client() Translator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Service) replace(t Translator) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
}

func (s *Service) attempt(ctx context.Context, t Translator, text, target string) (string, error) {
	if t == nil {
		return "", errors.New("translation: no client available")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, err := t.Translate(ctx, text, sourceLanguage, target)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

// Translate returns text translated to target. Empty text and English targets are
// returned unchanged without calling any provider.
func (s *Service) Translate(ctx context.Context, text string, target models.Language) string {
	if strings.TrimSpace(text) == "" || target == models.LanguageEnglish || target == "" {
		return text
	}
	code := string(target)

	out, err := s.attempt(ctx, s.client(), text, code)
	if err == nil {
		metrics.TranslationTotal.WithLabelValues(code, "ok").Inc()
		return out
	}
	s.log.Warnf("translation: %s translation failed, retrying with a new client: %v", code, err)

	fresh, ferr := s.factory()
	if ferr != nil {
		return s.fallback(text, code, fmt.Errorf("failed to build retry client: %w", ferr))
	}

	out, err = s.attempt(ctx, fresh, text, code)
	if err != nil {
		return s.fallback(text, code, err)
	}

	s.replace(fresh)
	metrics.TranslationTotal.WithLabelValues(code, "retried").Inc()
	return out
}

func (s *Service) fallback(text, code string, err error) string {
	s.log.Errorf("translation: giving up on %s translation, keeping English caption: %v", code, err)
	metrics.TranslationTotal.WithLabelValues(code, "fallback").Inc()
	return text
}
