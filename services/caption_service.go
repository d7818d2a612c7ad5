package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/captionsys/database"
	"github.com/camden-git/captionsys/media"
	"github.com/camden-git/captionsys/models"
	"github.com/camden-git/captionsys/repository"
)

// CaptionSet holds one caption per supported language; unset languages are null
type CaptionSet struct {
	En string  `json:"en"`
	Es *string `json:"es"`
	Fr *string `json:"fr"`
	De *string `json:"de"`
	Hi *string `json:"hi"`
	Zh *string `json:"zh"`
}

func captionSetOf(img *models.CaptionedImage) CaptionSet {
	return CaptionSet{
		En: img.CaptionEn,
		Es: img.CaptionEs,
		Fr: img.CaptionFr,
		De: img.CaptionDe,
		Hi: img.CaptionHi,
		Zh: img.CaptionZh,
	}
}

// CaptionView is how a record is shown by the listing endpoints
type CaptionView struct {
	ID           uint       `json:"id"`
	Filename     string     `json:"filename"`
	ImageURL     string     `json:"image_url"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Captions     CaptionSet `json:"captions"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Size         string     `json:"size"`
	FileSize     int64      `json:"file_size"`
	UploadedAt   string     `json:"uploaded_at"`
	CameraMake   *string    `json:"camera_make,omitempty"`
	CameraModel  *string    `json:"camera_model,omitempty"`
	TakenAt      *time.Time `json:"taken_at,omitempty"`
}

// CaptionDetail is a single record with the caption for the requested language;
// Caption is null when that language has no caption stored.
type CaptionDetail struct {
	CaptionView
	Language string  `json:"language"`
	Caption  *string `json:"caption"`
}

type ExportImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   string `json:"size"`
}

// ExportEntry is one element of the captions.json download
type ExportEntry struct {
	Filename   string          `json:"filename"`
	UploadedAt string          `json:"uploaded_at"`
	Captions   CaptionSet      `json:"captions"`
	ImageInfo  ExportImageInfo `json:"image_info"`
}

// ISOFormat renders t like Python's datetime.isoformat: microseconds only when
// non-zero and a numeric UTC offset.
func ISOFormat(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}

type CaptionService struct {
	repo       repository.CaptionRepositoryInterface
	thumbnails repository.ThumbnailRepositoryInterface
	mediaURL   string
	log        *zap.SugaredLogger
}

func NewCaptionService(repo repository.CaptionRepositoryInterface, thumbnails repository.ThumbnailRepositoryInterface,
	mediaURL string, logger *zap.SugaredLogger) *CaptionService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CaptionService{repo: repo, thumbnails: thumbnails, mediaURL: mediaURL, log: logger}
}

func (s *CaptionService) view(img *models.CaptionedImage, thumbPath string) CaptionView {
	v := CaptionView{
		ID:          img.ID,
		Filename:    img.OriginalFilename,
		ImageURL:    media.URL(s.mediaURL, img.Image),
		Captions:    captionSetOf(img),
		Width:       img.ImageWidth,
		Height:      img.ImageHeight,
		Size:        img.FileSizeDisplay(),
		FileSize:    img.FileSize,
		UploadedAt:  ISOFormat(img.UploadedAt),
		CameraMake:  img.CameraMake,
		CameraModel: img.CameraModel,
		TakenAt:     img.TakenAt,
	}
	// thumbnail paths start with the thumbnails directory, which has its own route
	if thumbPath != "" {
		v.ThumbnailURL = media.URL("/", thumbPath)
	}
	return v
}

// views attaches thumbnail URLs; a thumbnail lookup failure only drops the URLs
func (s *CaptionService) views(images []models.CaptionedImage) []CaptionView {
	thumbs := map[string]string{}
	if s.thumbnails != nil && len(images) > 0 {
		paths := make([]string, len(images))
		for i := range images {
			paths[i] = images[i].Image
		}
		found, err := s.thumbnails.PathsFor(paths)
		if err != nil {
			s.log.Warnf("services: failed to look up thumbnails: %v", err)
		} else {
			thumbs = found
		}
	}

	out := make([]CaptionView, 0, len(images))
	for i := range images {
		out = append(out, s.view(&images[i], thumbs[images[i].Image]))
	}
	return out
}

// Recent returns the newest records first
func (s *CaptionService) Recent(limit int) ([]CaptionView, error) {
	images, err := s.repo.ListRecent(limit)
	if err != nil {
		return nil, err
	}
	return s.views(images), nil
}

func (s *CaptionService) Search(filter database.CaptionFilter) ([]CaptionView, error) {
	images, err := s.repo.Search(filter)
	if err != nil {
		return nil, err
	}
	return s.views(images), nil
}

// Get returns one record with its caption in lang
func (s *CaptionService) Get(id uint, lang models.Language) (*CaptionDetail, error) {
	img, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	views := s.views([]models.CaptionedImage{*img})
	return &CaptionDetail{
		CaptionView: views[0],
		Language:    string(lang),
		Caption:     img.GetCaption(lang),
	}, nil
}

// Export projects every record, newest first, for the captions.json download
func (s *CaptionService) Export() ([]ExportEntry, error) {
	images, err := s.repo.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load records for export: %w", err)
	}

	entries := make([]ExportEntry, 0, len(images))
	for i := range images {
		img := &images[i]
		entries = append(entries, ExportEntry{
			Filename:   img.OriginalFilename,
			UploadedAt: ISOFormat(img.UploadedAt),
			Captions:   captionSetOf(img),
			ImageInfo: ExportImageInfo{
				Width:  img.ImageWidth,
				Height: img.ImageHeight,
				Size:   img.FileSizeDisplay(),
			},
		})
	}
	return entries, nil
}
