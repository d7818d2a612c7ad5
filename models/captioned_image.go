package models

import (
	"fmt"
	"time"
)

// CaptionedImage stores an uploaded image and its generated captions.
// It corresponds to the 'captioned_images' table.
type CaptionedImage struct {
	ID               uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Image            string `gorm:"not null" json:"image"` // path relative to MEDIA_STORAGE_PATH
	OriginalFilename string `gorm:"size:255;not null;index" json:"original_filename"`

	// caption in the source language, always written
	CaptionEn string `gorm:"type:text;not null;default:''" json:"caption_en"`

	// translated captions, at most one is set per record
	CaptionEs *string `gorm:"type:text" json:"caption_es"`
	CaptionFr *string `gorm:"type:text" json:"caption_fr"`
	CaptionDe *string `gorm:"type:text" json:"caption_de"`
	CaptionHi *string `gorm:"type:text" json:"caption_hi"`
	CaptionZh *string `gorm:"type:text" json:"caption_zh"`

	UploadedAt  time.Time `gorm:"not null;index" json:"uploaded_at"`
	FileSize    int64     `gorm:"not null;default:0" json:"file_size"`
	ImageWidth  int       `gorm:"not null;default:0" json:"image_width"`
	ImageHeight int       `gorm:"not null;default:0" json:"image_height"`

	Checksum      string     `gorm:"size:64;index" json:"checksum,omitempty"`
	ContentType   string     `gorm:"size:100" json:"content_type,omitempty"`
	CameraMake    *string    `json:"camera_make,omitempty"`  // Nullable, from EXIF
	CameraModel   *string    `json:"camera_model,omitempty"` // Nullable, from EXIF
	TakenAt       *time.Time `json:"taken_at,omitempty"`     // Nullable, from EXIF
	CaptionSource string     `gorm:"size:50" json:"caption_source,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (CaptionedImage) TableName() string {
	return "captioned_images"
}

func (c CaptionedImage) String() string {
	return fmt.Sprintf("%s - %s", c.OriginalFilename, c.UploadedAt.Format("2006-01-02 15:04"))
}

// translatedField returns the column backing a non-English language, or nil.
func (c *CaptionedImage) translatedField(lang Language) **string {
	switch lang {
	case LanguageSpanish:
		return &c.CaptionEs
	case LanguageFrench:
		return &c.CaptionFr
	case LanguageGerman:
		return &c.CaptionDe
	case LanguageHindi:
		return &c.CaptionHi
	case LanguageChinese:
		return &c.CaptionZh
	default:
		return nil
	}
}

// GetCaption returns the caption stored for lang. Unknown codes fall back to the English
// caption; a supported language without a caption returns nil.
func (c *CaptionedImage) GetCaption(lang Language) *string {
	field := c.translatedField(lang)
	if field == nil {
		en := c.CaptionEn
		return &en
	}
	return *field
}

// SetCaption stores text in the single column matching lang. English and unsupported
// languages are a no-op; the English caption is only ever set on creation.
func (c *CaptionedImage) SetCaption(lang Language, text string) bool {
	field := c.translatedField(lang)
	if field == nil {
		return false
	}
	value := text
	*field = &value
	return true
}

// Captions returns every language column keyed by code; unset columns map to nil.
func (c *CaptionedImage) Captions() map[Language]*string {
	en := c.CaptionEn
	return map[Language]*string{
		LanguageEnglish: &en,
		LanguageSpanish: c.CaptionEs,
		LanguageFrench:  c.CaptionFr,
		LanguageGerman:  c.CaptionDe,
		LanguageHindi:   c.CaptionHi,
		LanguageChinese: c.CaptionZh,
	}
}

// FileSizeDisplay renders FileSize in human-readable form, e.g. "2.0 KB".
func (c *CaptionedImage) FileSizeDisplay() string {
	return HumanFileSize(c.FileSize)
}

// HumanFileSize divides by 1024 until the value drops below 1024, up to TB.
func HumanFileSize(bytes int64) string {
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}
