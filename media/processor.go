package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CaptionJpegQuality = 90

	ThumbnailJpegQuality   = 85
	ThumbnailFileExtension = ".jpg"
)

// Processor handles media transformations like thumbnailing and resizing. it
// relies on a Store implementation for saving the results.
type Processor struct {
	store Store
	log   *zap.SugaredLogger
}

func NewProcessor(store Store, logger *zap.SugaredLogger) *Processor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Processor{store: store, log: logger}
}

// OpenRGB decodes the file at path, applies the EXIF orientation and flattens any
// alpha channel onto white so the result is plain RGB.
func OpenRGB(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", filepath.Base(path), err)
	}
	return ToRGB(img), nil
}

// ToRGB composites img onto an opaque white canvas
func ToRGB(img image.Image) image.Image {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// EncodeJPEG fits img into maxSide (0 keeps the original size) and encodes it as JPEG
func EncodeJPEG(img image.Image, maxSide int) ([]byte, error) {
	b := img.Bounds()
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(CaptionJpegQuality)); err != nil {
		return nil, fmt.Errorf("jpeg encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnailSize scales width and height so the longest side equals maxSize.
// Images already smaller than maxSize keep their size.
func thumbnailSize(origWidth, origHeight, maxSize int) (int, int) {
	var newWidth, newHeight int
	if origWidth > origHeight {
		if origWidth <= maxSize {
			newWidth, newHeight = origWidth, origHeight
		} else {
			newWidth = maxSize
			newHeight = int(math.Round(float64(origHeight) * (float64(maxSize) / float64(origWidth))))
		}
	} else {
		if origHeight <= maxSize {
			newWidth, newHeight = origWidth, origHeight
		} else {
			newHeight = maxSize
			newWidth = int(math.Round(float64(origWidth) * (float64(maxSize) / float64(origHeight))))
		}
	}
	return max(1, newWidth), max(1, newHeight)
}

// GenerateThumbnail creates a thumbnail where the longest side matches maxSize.
// saves the result using the Store. returns relative path to saved thumb or error.
func (p *Processor) GenerateThumbnail(originalImg image.Image, originalRelPath string, maxSize int) (string, error) {
	origBounds := originalImg.Bounds()
	if origBounds.Dx() <= 0 || origBounds.Dy() <= 0 {
		return "", fmt.Errorf("invalid original image dimensions: %dx%d", origBounds.Dx(), origBounds.Dy())
	}

	newWidth, newHeight := thumbnailSize(origBounds.Dx(), origBounds.Dy(), maxSize)
	thumb := imaging.Resize(originalImg, newWidth, newHeight, imaging.Lanczos)

	reader, writer := io.Pipe()

	go func() {
		err := imaging.Encode(writer, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality))
		if err != nil {
			p.log.Errorf("processor: Failed to encode thumbnail: %v", err)
			writer.CloseWithError(fmt.Errorf("thumbnail encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	thumbUUID, err := uuid.NewRandom()
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to generate UUID for thumbnail: %w", err)
	}
	targetFilename := thumbUUID.String() + ThumbnailFileExtension

	saved, err := p.store.Save(AssetTypeThumbnail, "", targetFilename, reader)
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to save thumbnail via store: %w", err)
	}

	p.log.Debugf("processor: Generated and saved thumbnail for %s at %s", originalRelPath, saved.RelativePath)
	return saved.RelativePath, nil
}
