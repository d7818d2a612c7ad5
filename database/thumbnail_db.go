package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
)

type ThumbnailInfo struct {
	ImagePath     string
	ThumbnailPath string
	GeneratedAt   int64
}

// GetThumbnailInfo returns sql.ErrNoRows when no thumbnail was generated yet
func GetThumbnailInfo(db Querier, imagePath string) (ThumbnailInfo, error) {
	imagePath = filepath.ToSlash(imagePath)
	var info ThumbnailInfo
	queryBuilder := psql.Select("image_path", "thumbnail_path", "generated_at").
		From("thumbnails").
		Where(sq.Eq{"image_path": imagePath}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return ThumbnailInfo{}, fmt.Errorf("failed to build SQL query for GetThumbnailInfo: %w", err)
	}

	err = db.QueryRow(sqlStr, args...).Scan(&info.ImagePath, &info.ThumbnailPath, &info.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ThumbnailInfo{}, sql.ErrNoRows
		}
		return ThumbnailInfo{}, fmt.Errorf("failed to query or scan thumbnail info for %s: %w", imagePath, err)
	}
	return info, nil
}

// GetThumbnailPaths maps image path to thumbnail path for the images that have one
func GetThumbnailPaths(db Querier, imagePaths []string) (map[string]string, error) {
	result := make(map[string]string, len(imagePaths))
	if len(imagePaths) == 0 {
		return result, nil
	}

	cleanPaths := make([]string, len(imagePaths))
	for i, p := range imagePaths {
		cleanPaths[i] = filepath.ToSlash(p)
	}

	sqlStr, args, err := psql.Select("image_path", "thumbnail_path").
		From("thumbnails").
		Where(sq.Eq{"image_path": cleanPaths}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for GetThumbnailPaths: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query thumbnail paths: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var imagePath, thumbPath string
		if err := rows.Scan(&imagePath, &thumbPath); err != nil {
			return nil, fmt.Errorf("failed to scan thumbnail path: %w", err)
		}
		result[imagePath] = thumbPath
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate thumbnail paths: %w", err)
	}
	return result, nil
}

// SetThumbnailInfo inserts or updates thumbnail information
func SetThumbnailInfo(db Querier, imagePath, thumbnailPath string, generatedAt int64) error {
	imagePath = filepath.ToSlash(imagePath)
	queryBuilder := psql.Insert("thumbnails").
		Columns("image_path", "thumbnail_path", "generated_at").
		Values(imagePath, filepath.ToSlash(thumbnailPath), generatedAt).
		Suffix("ON CONFLICT(image_path) DO UPDATE SET").
		Suffix("thumbnail_path = excluded.thumbnail_path,").
		Suffix("generated_at = excluded.generated_at")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetThumbnailInfo: %w", err)
	}

	_, err = db.Exec(sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to execute set thumbnail info for %s: %w", imagePath, err)
	}
	return nil
}
