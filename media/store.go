package media

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidPath is returned when a path would resolve outside the storage root
var ErrInvalidPath = errors.New("invalid path")

const maxCollisionAttempts = 5

// Store defines the interface for saving, retrieving, and deleting media assets
type Store interface {
	// Save writes data under the asset type directory, inside relativeDirHint.
	// An existing file with the same name is never overwritten; a short random
	// suffix is added instead.
	Save(assetType AssetType, relativeDirHint string, filenameHint string, data io.Reader) (SavedAsset, error)
	// Get retrieves a reader for an asset
	Get(relativePath string) (io.ReadCloser, os.FileInfo, error)
	// Delete removes an asset
	Delete(relativePath string) error
	// GetFullPath returns the absolute filesystem path for a relative asset path
	GetFullPath(relativePath string) (string, error)
	// EnsureDir makes sure a specific asset type directory exists
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string               // absolute path to the MEDIA_STORAGE_PATH
	resolvedPathMap map[AssetType]string // maps AssetType to full absolute path
	log             *zap.SugaredLogger
}

// DatePartition returns the YYYY/MM/DD directory uploads made at t are stored in
func DatePartition(t time.Time) string {
	return t.Format("2006/01/02")
}

// within reports whether target is root or lies below it
func within(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	return target == root || strings.HasPrefix(target, root+string(filepath.Separator))
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, subDirs map[AssetType]string, logger *zap.SugaredLogger) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !within(absBasePath, fullPath) || fullPath == absBasePath {
			return nil, fmt.Errorf("%w: subdirectory '%s' resolves outside base path '%s'", ErrInvalidPath, subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	logger.Infof("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
		log:             logger,
	}, nil
}

// BasePath returns the absolute storage root
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

func (ls *LocalStorage) getAssetTypeDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return dirPath, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.getAssetTypeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

// sanitizeFilename keeps only the base name the client sent
func sanitizeFilename(name string) (string, error) {
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: unusable filename '%s'", ErrInvalidPath, name)
	}
	return base, nil
}

// withSuffix turns "cat.jpg" into "cat_ab12cd34.jpg"
func withSuffix(filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return stem + "_" + suffix + ext
}

// createUnique opens a new file in dir, adding a suffix when the name is taken
func createUnique(dir, filename string) (*os.File, string, error) {
	candidate := filename
	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		fullPath := filepath.Join(dir, candidate)
		f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, fullPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create destination file '%s': %w", fullPath, err)
		}
		candidate = withSuffix(filename)
	}
	return nil, "", fmt.Errorf("could not find a free name for '%s' in '%s'", filename, dir)
}

// Save data to the store
func (ls *LocalStorage) Save(assetType AssetType, relativeDirHint string, filenameHint string, data io.Reader) (SavedAsset, error) {
	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return SavedAsset{}, err
	}

	targetDir := baseAssetDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseAssetDir, filepath.FromSlash(relativeDirHint))
		if !within(baseAssetDir, targetDir) {
			return SavedAsset{}, fmt.Errorf("%w: relative directory hint '%s'", ErrInvalidPath, relativeDirHint)
		}
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return SavedAsset{}, fmt.Errorf("failed to create sub-directory '%s': %w", targetDir, err)
		}
	}

	if filenameHint == "" {
		return SavedAsset{}, fmt.Errorf("filename hint cannot be empty for LocalStorage.Save")
	}
	filename, err := sanitizeFilename(filenameHint)
	if err != nil {
		return SavedAsset{}, err
	}

	outFile, fullSavePath, err := createUnique(targetDir, filename)
	if err != nil {
		return SavedAsset{}, err
	}
	defer outFile.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return SavedAsset{}, fmt.Errorf("failed to initialise checksum: %w", err)
	}

	written, err := io.Copy(outFile, io.TeeReader(data, hasher))
	if err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return SavedAsset{}, fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		ls.log.Errorf("media.store: Error calculating relative path for '%s' from '%s': %v", fullSavePath, ls.basePath, err)
		return SavedAsset{}, fmt.Errorf("internal error calculating relative path: %w", err)
	}

	ls.log.Debugf("media.store: Saved asset to %s (%d bytes)", fullSavePath, written)
	return SavedAsset{
		RelativePath: filepath.ToSlash(relativePath),
		Size:         written,
		Checksum:     hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (ls *LocalStorage) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", relativePath, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}

	return file, info, nil
}

// Delete removes an asset file; a missing file is not an error
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		ls.log.Infof("media.store: Deleted asset %s", fullPath)
	}
	return nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	cleanRelativePath := filepath.Clean(filepath.FromSlash(relativePath))

	absFullPath, err := filepath.Abs(filepath.Join(ls.basePath, cleanRelativePath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !within(ls.basePath, absFullPath) || absFullPath == ls.basePath {
		return "", fmt.Errorf("%w: access denied for '%s'", ErrInvalidPath, relativePath)
	}

	return absFullPath, nil
}

// URL joins a media URL prefix and a relative asset path
func URL(prefix, relativePath string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(filepath.ToSlash(relativePath), "/")
}
