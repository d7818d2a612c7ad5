package captioner

import (
	"context"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"
)

// Factory builds a Captioner
type Factory func() (Captioner, error)

// Lazy defers building the underlying Captioner until the first caption request.
// Concurrent first calls build it exactly once; a failed build is retried on the
// next call.
type Lazy struct {
	mu      sync.Mutex
	name    string
	factory Factory
	inner   Captioner
	log     *zap.SugaredLogger
}

func NewLazy(name string, factory Factory, logger *zap.SugaredLogger) *Lazy {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Lazy{name: name, factory: factory, log: logger}
}

func (l *Lazy) get() (Captioner, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inner != nil {
		return l.inner, nil
	}

	l.log.Infof("captioner: loading %s caption model", l.name)
	c, err := l.factory()
	if err != nil {
		return nil, fmt.Errorf("captioner: failed to initialise %s: %w", l.name, err)
	}
	l.inner = c
	return c, nil
}

// Ready reports whether the underlying captioner has been built
func (l *Lazy) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inner != nil
}

func (l *Lazy) Name() string {
	return l.name
}

func (l *Lazy) Caption(ctx context.Context, img image.Image, opts Options) (string, error) {
	c, err := l.get()
	if err != nil {
		return "", err
	}
	return c.Caption(ctx, img, opts)
}
