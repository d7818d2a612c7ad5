package captioner

import (
	"image"

	"github.com/camden-git/captionsys/media"
)

// encodeForModel fits img into the configured max side and returns JPEG bytes
func encodeForModel(img image.Image, opts Options) ([]byte, error) {
	maxSide := opts.MaxImageSide
	if maxSide <= 0 {
		maxSide = DefaultOptions().MaxImageSide
	}
	return media.EncodeJPEG(img, maxSide)
}

// frequencyPenalty maps a multiplicative repetition penalty (1 = none) onto the
// additive 0..2 frequency penalty range used by chat APIs.
func frequencyPenalty(repetition float64) float64 {
	p := repetition - 1.0
	if p < 0 {
		return 0
	}
	if p > 2 {
		return 2
	}
	return p
}

// truncate shortens API error bodies before they end up in a per-file error message
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
