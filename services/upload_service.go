package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/captionsys/captioner"
	"github.com/camden-git/captionsys/media"
	"github.com/camden-git/captionsys/metrics"
	"github.com/camden-git/captionsys/models"
	"github.com/camden-git/captionsys/realtime"
	"github.com/camden-git/captionsys/repository"
	"github.com/camden-git/captionsys/workers"
)

// ErrNoFiles is returned when an upload carries no images
var ErrNoFiles = errors.New("no images uploaded")

const DefaultMaxUploadFiles = 5

// UploadFile is one file of an upload request
type UploadFile struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

// FilesFromMultipart adapts multipart file headers
func FilesFromMultipart(headers []*multipart.FileHeader) []UploadFile {
	files := make([]UploadFile, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, UploadFile{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return files
}

// CaptionTranslator translates an English caption; it never fails
type CaptionTranslator interface {
	Translate(ctx context.Context, text string, target models.Language) string
}

// FileResult is the outcome for a single uploaded file
type FileResult struct {
	Success   bool
	Filename  string
	ID        uint
	Caption   string
	CaptionEn string
	ImageURL  string
	Width     int
	Height    int
	Size      string
	Language  string
	Error     string
}

// MarshalJSON writes the success shape or the failure shape, never a mix of both
func (r FileResult) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success  bool   `json:"success"`
			Filename string `json:"filename"`
			Error    string `json:"error"`
		}{false, r.Filename, r.Error})
	}
	return json.Marshal(struct {
		Success   bool   `json:"success"`
		ID        uint   `json:"id"`
		Filename  string `json:"filename"`
		Caption   string `json:"caption"`
		CaptionEn string `json:"caption_en"`
		ImageURL  string `json:"image_url"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Size      string `json:"size"`
		Language  string `json:"language"`
	}{true, r.ID, r.Filename, r.Caption, r.CaptionEn, r.ImageURL, r.Width, r.Height, r.Size, r.Language})
}

// UploadResponse lists one result per processed file, in input order, and the
// names of files beyond the per-request limit.
type UploadResponse struct {
	BatchID string       `json:"batch_id"`
	Results []FileResult `json:"results"`
	Skipped []string     `json:"skipped"`
}

type UploadService struct {
	store      media.Store
	repo       repository.CaptionRepositoryInterface
	captioner  captioner.Captioner
	translator CaptionTranslator
	thumbnails workers.ThumbnailQueue
	hub        realtime.Broadcaster
	options    captioner.Options
	maxFiles   int
	mediaURL   string
	now        func() time.Time
	log        *zap.SugaredLogger
}

type UploadServiceConfig struct {
	Options  captioner.Options
	MaxFiles int
	MediaURL string
}

func NewUploadService(
	store media.Store,
	repo repository.CaptionRepositoryInterface,
	capt captioner.Captioner,
	translator CaptionTranslator,
	thumbnails workers.ThumbnailQueue,
	hub realtime.Broadcaster,
	cfg UploadServiceConfig,
	logger *zap.SugaredLogger,
) *UploadService {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxUploadFiles
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = "/media/"
	}
	if hub == nil {
		hub = realtime.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UploadService{
		store:      store,
		repo:       repo,
		captioner:  capt,
		translator: translator,
		thumbnails: thumbnails,
		hub:        hub,
		options:    cfg.Options,
		maxFiles:   cfg.MaxFiles,
		mediaURL:   cfg.MediaURL,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logger,
	}
}

// Process runs the caption pipeline for each file in order. Per-file failures are
// reported in the results; the only error is ErrNoFiles.
func (s *UploadService) Process(ctx context.Context, rawLanguage string, files []UploadFile) (*UploadResponse, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	lang := models.ParseLanguage(rawLanguage)
	resp := &UploadResponse{
		BatchID: uuid.NewString(),
		Results: make([]FileResult, 0, min(len(files), s.maxFiles)),
		Skipped: make([]string, 0),
	}

	toProcess := files
	if len(files) > s.maxFiles {
		toProcess = files[:s.maxFiles]
		for i, f := range files[s.maxFiles:] {
			resp.Skipped = append(resp.Skipped, f.Filename)
			metrics.UploadFilesTotal.WithLabelValues("skipped").Inc()
			s.hub.Broadcast(realtime.Event{
				Type:     realtime.EventSkipped,
				BatchID:  resp.BatchID,
				Index:    s.maxFiles + i,
				Filename: f.Filename,
			})
		}
		s.log.Infof("services: upload %s has %d files, processing the first %d", resp.BatchID, len(files), s.maxFiles)
	}

	for i, f := range toProcess {
		s.hub.Broadcast(realtime.Event{
			Type:     realtime.EventProcessing,
			BatchID:  resp.BatchID,
			Index:    i,
			Filename: f.Filename,
			Language: string(lang),
		})

		result, err := s.processFile(ctx, lang, f)
		if err != nil {
			s.log.Errorf("services: error processing %s: %v", f.Filename, err)
			metrics.UploadFilesTotal.WithLabelValues("error").Inc()
			resp.Results = append(resp.Results, FileResult{Success: false, Filename: f.Filename, Error: err.Error()})
			s.hub.Broadcast(realtime.Event{
				Type:     realtime.EventError,
				BatchID:  resp.BatchID,
				Index:    i,
				Filename: f.Filename,
				Error:    err.Error(),
			})
			continue
		}

		metrics.UploadFilesTotal.WithLabelValues("success").Inc()
		resp.Results = append(resp.Results, result)
		s.hub.Broadcast(realtime.Event{
			Type:     realtime.EventCaptioned,
			BatchID:  resp.BatchID,
			Index:    i,
			Filename: f.Filename,
			Language: result.Language,
			Caption:  result.Caption,
			Extra:    map[string]interface{}{"id": result.ID, "image_url": result.ImageURL},
		})
	}

	return resp, nil
}

func (s *UploadService) processFile(ctx context.Context, lang models.Language, f UploadFile) (FileResult, error) {
	now := s.now()

	rc, err := f.Open()
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to read upload: %w", err)
	}
	saved, err := s.store.Save(media.AssetTypeUpload, media.DatePartition(now), f.Filename, rc)
	rc.Close()
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to store image: %w", err)
	}

	record, caption, err := s.describe(ctx, lang, f.Filename, saved, now)
	if err != nil {
		// nothing references the stored file when no record was written
		if delErr := s.store.Delete(saved.RelativePath); delErr != nil {
			s.log.Warnf("services: failed to remove orphaned upload %s: %v", saved.RelativePath, delErr)
		}
		return FileResult{}, err
	}

	if s.thumbnails != nil {
		s.thumbnails.QueueJob(workers.ThumbnailJob{ImageID: record.ID, RelativePath: record.Image})
	}

	return FileResult{
		Success:   true,
		ID:        record.ID,
		Filename:  f.Filename,
		Caption:   caption,
		CaptionEn: record.CaptionEn,
		ImageURL:  media.URL(s.mediaURL, record.Image),
		Width:     record.ImageWidth,
		Height:    record.ImageHeight,
		Size:      record.FileSizeDisplay(),
		Language:  string(lang),
	}, nil
}

// describe probes, captions, translates and persists one stored file. It returns the
// record and the caption in the requested language.
func (s *UploadService) describe(ctx context.Context, lang models.Language, filename string, saved media.SavedAsset, now time.Time) (*models.CaptionedImage, string, error) {
	fullPath, err := s.store.GetFullPath(saved.RelativePath)
	if err != nil {
		return nil, "", err
	}

	probe, err := media.Probe(fullPath)
	if err != nil {
		return nil, "", err
	}

	img, err := media.OpenRGB(fullPath)
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	captionEn, err := s.captioner.Caption(ctx, img, s.options)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CaptionDurationSeconds.WithLabelValues(s.captioner.Name(), result).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, "", fmt.Errorf("caption generation failed: %w", err)
	}
	s.log.Debugf("services: caption for %s (%d words): %s", filename, wordCount(captionEn), captionEn)

	translated := captionEn
	if lang != models.LanguageEnglish {
		translated = s.translator.Translate(ctx, captionEn, lang)
	}

	record := &models.CaptionedImage{
		Image:            saved.RelativePath,
		OriginalFilename: truncateFilename(filename),
		CaptionEn:        captionEn,
		UploadedAt:       now,
		FileSize:         saved.Size,
		ImageWidth:       probe.Width,
		ImageHeight:      probe.Height,
		Checksum:         saved.Checksum,
		ContentType:      probe.ContentType,
		CameraMake:       probe.CameraMake,
		CameraModel:      probe.CameraModel,
		TakenAt:          probe.TakenAt,
		CaptionSource:    s.captioner.Name(),
	}
	record.SetCaption(lang, translated)

	if err := s.repo.Create(record); err != nil {
		return nil, "", err
	}
	return record, translated, nil
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// truncateFilename keeps the stored name within the column's 255 characters
func truncateFilename(name string) string {
	runes := []rune(name)
	if len(runes) <= 255 {
		return name
	}
	return string(runes[:255])
}
