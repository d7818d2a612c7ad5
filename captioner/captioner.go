// Package captioner turns images into English captions using a pretrained
// vision-language model reached over HTTP.
package captioner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// ErrEmptyCaption is returned when a provider answers without any usable text
var ErrEmptyCaption = errors.New("captioner: empty caption")

// Options are the generation settings passed to every provider. Lengths are in tokens.
type Options struct {
	MinLength         int
	MaxLength         int
	NumBeams          int
	RepetitionPenalty float64
	LengthPenalty     float64
	EarlyStopping     bool
	TargetWords       int
	MaxImageSide      int
}

// DefaultOptions aims for a descriptive caption of roughly fifty words.
func DefaultOptions() Options {
	return Options{
		MinLength:         100,
		MaxLength:         250,
		NumBeams:          5,
		RepetitionPenalty: 2.0,
		LengthPenalty:     1.0,
		EarlyStopping:     true,
		TargetWords:       50,
		MaxImageSide:      1024,
	}
}

// Captioner produces a caption for a decoded RGB image.
type Captioner interface {
	Caption(ctx context.Context, img image.Image, opts Options) (string, error)
	Name() string
}

// wordBounds is the accepted caption length in words around the target.
func wordBounds(opts Options) (int, int) {
	target := opts.TargetWords
	if target <= 0 {
		target = DefaultOptions().TargetWords
	}
	return target / 2, target * 2
}

// CleanCaption trims whitespace and wrapping quotes and collapses inner whitespace.
func CleanCaption(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	return strings.Join(strings.Fields(s), " ")
}

// repeatedAdjacent counts words equal to the word before them, ignoring case.
func repeatedAdjacent(words []string) int {
	n := 0
	for i := 1; i < len(words); i++ {
		if strings.EqualFold(strings.Trim(words[i], ".,;:!?"), strings.Trim(words[i-1], ".,;:!?")) {
			n++
		}
	}
	return n
}

type candidateScore struct {
	inBounds bool
	repeats  int
	distance int
}

func (a candidateScore) better(b candidateScore) bool {
	if a.inBounds != b.inBounds {
		return a.inBounds
	}
	if a.repeats != b.repeats {
		return a.repeats < b.repeats
	}
	return a.distance < b.distance
}

// SelectCandidate picks the best of several generated captions: candidates whose word
// count is within bounds win, then the fewest repeated adjacent words, then the one
// closest to the target word count. Ties keep the earlier candidate.
// Blank generations are a valid empty caption; only an empty candidate list is an error.
func SelectCandidate(candidates []string, opts Options) (string, error) {
	if len(candidates) == 0 {
		return "", ErrEmptyCaption
	}

	lo, hi := wordBounds(opts)
	target := (lo + hi) / 2
	if opts.TargetWords > 0 {
		target = opts.TargetWords
	}

	best := ""
	var bestScore candidateScore
	found := false
	for _, raw := range candidates {
		c := CleanCaption(raw)
		if c == "" {
			continue
		}
		words := strings.Fields(c)
		score := candidateScore{
			inBounds: len(words) >= lo && len(words) <= hi,
			repeats:  repeatedAdjacent(words),
			distance: int(math.Abs(float64(len(words) - target))),
		}
		if !found || score.better(bestScore) {
			best, bestScore, found = c, score, true
		}
	}
	if !found {
		return "", nil
	}
	return best, nil
}

// captionPrompt is the instruction used by the chat style providers.
func captionPrompt(opts Options) string {
	target := opts.TargetWords
	if target <= 0 {
		target = DefaultOptions().TargetWords
	}
	lo, hi := wordBounds(opts)
	return fmt.Sprintf("Describe this image in one detailed paragraph of about %d words (between %d and %d). "+
		"Mention the main subjects, their actions, the setting, colours and lighting. "+
		"Do not repeat yourself and reply with the description only.", target, lo, hi)
}
