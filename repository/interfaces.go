package repository

import (
	"github.com/camden-git/captionsys/database"
	"github.com/camden-git/captionsys/models"
)

// CaptionRepositoryInterface defines the methods for caption record operations
type CaptionRepositoryInterface interface {
	Create(image *models.CaptionedImage) error
	GetByID(id uint) (*models.CaptionedImage, error)
	ListRecent(limit int) ([]models.CaptionedImage, error)
	ListAll() ([]models.CaptionedImage, error)
	Search(filter database.CaptionFilter) ([]models.CaptionedImage, error)
}

// ThumbnailRepositoryInterface defines the methods for thumbnail bookkeeping
type ThumbnailRepositoryInterface interface {
	Set(imagePath, thumbnailPath string, generatedAt int64) error
	Get(imagePath string) (*database.ThumbnailInfo, error)
	PathsFor(imagePaths []string) (map[string]string, error)
}
