package translation

import (
	"context"
	"fmt"
)

// StubClient marks text with the target code instead of translating it
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (StubClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("[%s] %s", target, text), nil
}
