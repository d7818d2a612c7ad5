package repository

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/camden-git/captionsys/database"
	"github.com/camden-git/captionsys/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = gorm.ErrRecordNotFound

// CaptionRepository handles database operations for CaptionedImage entities
type CaptionRepository struct {
	DB *gorm.DB
}

// NewCaptionRepository creates a new instance of CaptionRepository
func NewCaptionRepository(db *gorm.DB) *CaptionRepository {
	return &CaptionRepository{DB: db}
}

// Create inserts a record in a single statement, translated caption included
func (r *CaptionRepository) Create(image *models.CaptionedImage) error {
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now().UTC()
	} else {
		image.UploadedAt = image.UploadedAt.UTC()
	}
	if err := r.DB.Create(image).Error; err != nil {
		return fmt.Errorf("failed to create caption record for %s: %w", image.OriginalFilename, err)
	}
	return nil
}

func (r *CaptionRepository) GetByID(id uint) (*models.CaptionedImage, error) {
	var image models.CaptionedImage
	err := r.DB.First(&image, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get caption record by id %d: %w", id, err)
	}
	return &image, nil
}

// ListRecent returns at most limit records, newest first
func (r *CaptionRepository) ListRecent(limit int) ([]models.CaptionedImage, error) {
	var images []models.CaptionedImage
	err := r.DB.Order("uploaded_at DESC").Order("id DESC").Limit(limit).Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent caption records: %w", err)
	}
	return images, nil
}

// ListAll returns every record, newest first
func (r *CaptionRepository) ListAll() ([]models.CaptionedImage, error) {
	images := make([]models.CaptionedImage, 0)
	err := r.DB.Order("uploaded_at DESC").Order("id DESC").Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list caption records: %w", err)
	}
	return images, nil
}

// Search runs a filtered listing built by database.BuildCaptionSearchQuery
func (r *CaptionRepository) Search(filter database.CaptionFilter) ([]models.CaptionedImage, error) {
	sqlStr, args, err := database.BuildCaptionSearchQuery(filter)
	if err != nil {
		return nil, err
	}

	images := make([]models.CaptionedImage, 0)
	if err := r.DB.Raw(sqlStr, args...).Scan(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to search caption records: %w", err)
	}

	if filter.Sort == database.SortFilenameNat {
		sort.SliceStable(images, func(i, j int) bool {
			return natsort.Compare(images[i].OriginalFilename, images[j].OriginalFilename)
		})
		if limit := database.ClampSearchLimit(filter.Limit); len(images) > limit {
			images = images[:limit]
		}
	}
	return images, nil
}
