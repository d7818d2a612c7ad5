package translation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/camden-git/captionsys/models"
)

type fakeTranslator struct {
	out   string
	err   error
	calls int
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func countingFactory(t Translator, err error) (Factory, *int) {
	calls := 0
	return func() (Translator, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return t, nil
	}, &calls
}

func TestService_EnglishAndEmptyAreUnchanged(t *testing.T) {
	primary := &fakeTranslator{out: "nope"}
	factory, calls := countingFactory(primary, nil)
	svc := NewService(primary, factory, 0, nil)

	assert.Equal(t, "a dog", svc.Translate(context.Background(), "a dog", models.LanguageEnglish))
	assert.Equal(t, "", svc.Translate(context.Background(), "", models.LanguageSpanish))
	assert.Equal(t, 0, primary.calls)
	assert.Equal(t, 0, *calls)
}

func TestService_FirstAttemptSucceeds(t *testing.T) {
	primary := &fakeTranslator{out: "un perro"}
	factory, calls := countingFactory(nil, errors.New("should not be called"))
	svc := NewService(primary, factory, 0, nil)

	assert.Equal(t, "un perro", svc.Translate(context.Background(), "a dog", models.LanguageSpanish))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, *calls)
}

func TestService_RetriesOnceWithFreshClient(t *testing.T) {
	primary := &fakeTranslator{err: errors.New("connection reset")}
	fresh := &fakeTranslator{out: "un chien"}
	factory, calls := countingFactory(fresh, nil)
	svc := NewService(primary, factory, 0, nil)

	assert.Equal(t, "un chien", svc.Translate(context.Background(), "a dog", models.LanguageFrench))
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fresh.calls)

	// the fresh client replaced the broken one
	assert.Equal(t, "un chien", svc.Translate(context.Background(), "a dog", models.LanguageFrench))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, fresh.calls)
	assert.Equal(t, 1, *calls)
}

func TestService_FallsBackToOriginalText(t *testing.T) {
	primary := &fakeTranslator{err: errors.New("boom")}
	retry := &fakeTranslator{err: errors.New("boom again")}
	factory, calls := countingFactory(retry, nil)
	svc := NewService(primary, factory, 0, nil)

	assert.Equal(t, "a dog", svc.Translate(context.Background(), "a dog", models.LanguageGerman))
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, retry.calls)
}

func TestService_FactoryFailureFallsBack(t *testing.T) {
	primary := &fakeTranslator{err: errors.New("boom")}
	factory, calls := countingFactory(nil, errors.New("no network"))
	svc := NewService(primary, factory, 0, nil)

	assert.Equal(t, "a dog", svc.Translate(context.Background(), "a dog", models.LanguageHindi))
	assert.Equal(t, 1, *calls)
}

func TestService_EmptyOutputCountsAsFailure(t *testing.T) {
	primary := &fakeTranslator{out: "   "}
	fresh := &fakeTranslator{out: "一只狗"}
	factory, calls := countingFactory(fresh, nil)
	svc := NewService(primary, factory, 0, nil)

	assert.Equal(t, "一只狗", svc.Translate(context.Background(), "a dog", models.LanguageChinese))
	assert.Equal(t, 1, *calls)
}

func TestStubClient(t *testing.T) {
	out, err := NewStubClient().Translate(context.Background(), "a dog", "en", "es")
	assert.NoError(t, err)
	assert.Equal(t, "[es] a dog", out)
}

func TestNew(t *testing.T) {
	tr, err := New(Settings{Provider: "google"})
	assert.NoError(t, err)
	assert.IsType(t, &GoogleClient{}, tr)

	_, err = New(Settings{Provider: "llm"})
	assert.Error(t, err)

	tr, err = New(Settings{Provider: "llm", APIKey: "sk"})
	assert.NoError(t, err)
	assert.IsType(t, &LLMClient{}, tr)

	_, err = New(Settings{Provider: "deepl"})
	assert.Error(t, err)

	factory := NewFactory(Settings{Provider: "stub"})
	a, err := factory()
	assert.NoError(t, err)
	assert.IsType(t, &StubClient{}, a)
}
