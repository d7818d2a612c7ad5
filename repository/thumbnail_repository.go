package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/captionsys/database"
)

// ThumbnailRepository keeps generated thumbnail paths in the raw SQL thumbnails table
type ThumbnailRepository struct {
	DB *gorm.DB
}

func NewThumbnailRepository(db *gorm.DB) *ThumbnailRepository {
	return &ThumbnailRepository{DB: db}
}

func (r *ThumbnailRepository) sqlDB() (*sql.DB, error) {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}
	return sqlDB, nil
}

func (r *ThumbnailRepository) Set(imagePath, thumbnailPath string, generatedAt int64) error {
	db, err := r.sqlDB()
	if err != nil {
		return err
	}
	return database.SetThumbnailInfo(db, imagePath, thumbnailPath, generatedAt)
}

// Get returns ErrNotFound when the image has no thumbnail yet
func (r *ThumbnailRepository) Get(imagePath string) (*database.ThumbnailInfo, error) {
	db, err := r.sqlDB()
	if err != nil {
		return nil, err
	}
	info, err := database.GetThumbnailInfo(db, imagePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &info, nil
}

func (r *ThumbnailRepository) PathsFor(imagePaths []string) (map[string]string, error) {
	db, err := r.sqlDB()
	if err != nil {
		return nil, err
	}
	return database.GetThumbnailPaths(db, imagePaths)
}
