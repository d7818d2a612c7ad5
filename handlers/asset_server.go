package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AssetServer creates a handler to serve static files from a directory below the
// storage root. It must be mounted on a wildcard route; the wildcard is the path
// inside that directory.
//
//	r.Get("/media/*", AssetServer(cfg.MediaStoragePath, "", logger))
//	r.Get("/thumbnails/*", AssetServer(cfg.MediaStoragePath, "thumbnails", logger))
func AssetServer(baseStoragePath, subDir string, logger *zap.SugaredLogger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	baseStoragePath = filepath.Clean(baseStoragePath)
	fullAssetDirPath := filepath.Clean(filepath.Join(baseStoragePath, subDir))
	logger.Infof("handlers: serving assets for '%s' from directory %s", subDir, fullAssetDirPath)

	if !isWithin(baseStoragePath, fullAssetDirPath) {
		logger.Errorf("handlers: asset subdirectory '%s' resolved outside base storage path '%s'", subDir, baseStoragePath)
		return http.NotFound
	}

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := chi.URLParam(r, "*")
		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		cleanedAssetPath := filepath.Clean(filepath.Join(fullAssetDirPath, filepath.FromSlash(relativePath)))
		if !isWithin(fullAssetDirPath, cleanedAssetPath) || cleanedAssetPath == fullAssetDirPath {
			logger.Warnf("handlers: SECURITY: asset access outside designated directory: request='%s' resolved='%s'",
				r.URL.Path, cleanedAssetPath)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		info, err := os.Stat(cleanedAssetPath)
		if os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			logger.Errorf("handlers: error stating asset file %s: %v", cleanedAssetPath, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if info.IsDir() {
			http.NotFound(w, r)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
