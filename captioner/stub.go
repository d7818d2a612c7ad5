package captioner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
)

// StubClient is a deterministic, no-network captioner for CI and local runs.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) Name() string { return "stub" }

func (c *StubClient) Caption(ctx context.Context, img image.Image, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b := img.Bounds()
	h := sha256.New()
	fmt.Fprintf(h, "%dx%d", b.Dx(), b.Dy())
	// sample a sparse grid of pixels so different images get different captions
	stepX, stepY := max(1, b.Dx()/16), max(1, b.Dy()/16)
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, a := img.At(x, y).RGBA()
			fmt.Fprintf(h, "%d,%d,%d,%d;", r>>8, g>>8, bl>>8, a>>8)
		}
	}
	short := hex.EncodeToString(h.Sum(nil)[:4])
	return fmt.Sprintf("A stub caption for a %dx%d image with fingerprint %s.", b.Dx(), b.Dy(), short), nil
}
