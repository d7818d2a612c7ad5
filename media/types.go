package media

import "time"

type AssetType string

const (
	AssetTypeUpload    AssetType = "upload"
	AssetTypeThumbnail AssetType = "thumbnail"
)

// SavedAsset describes a file written by a Store
type SavedAsset struct {
	RelativePath string // slash separated, relative to the storage root
	Size         int64
	Checksum     string // blake2b-256, hex encoded
}

// ImageProcessingOptions can hold parameters for transformations
type ImageProcessingOptions struct {
	MaxSize int
	Quality int
}

// ProbeResult is what Probe learns about a stored image file
type ProbeResult struct {
	Width       int
	Height      int
	Format      string // decoder name, e.g. "jpeg"
	ContentType string
	CameraMake  *string
	CameraModel *string
	TakenAt     *time.Time
}
