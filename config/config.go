package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultUploadsSubDir    = "uploads"
	DefaultThumbnailsSubDir = "thumbnails"
	DefaultMediaURL         = "/media/"
)

const (
	defaultMaxUploadFiles   = 5
	defaultMaxUploadSizeMB  = 32
	defaultRecentLimit      = 10
	defaultCaptionMinLength = 100
	defaultCaptionMaxLength = 250
	defaultCaptionNumBeams  = 5
	defaultCaptionRepPenal  = 2.0
	defaultCaptionLenPenal  = 1.0
	defaultCaptionWords     = 50
	defaultCaptionImageSide = 1024

	defaultThumbnailQueueSize  = 100
	defaultNumThumbnailWorkers = 2
	defaultThumbnailMaxSize    = 300
)

type Config struct {
	Port     string
	LogLevel string

	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for uploaded originals and thumbnails
	UploadsPath      string // full-calculated path for uploaded originals
	ThumbnailsPath   string // full-calculated path for thumbnails
	MediaURL         string // URL prefix the originals are served under

	// upload limits
	MaxUploadFiles  int
	MaxUploadSizeMB int
	RecentListLimit int
	AllowedOrigins  []string

	// caption model settings
	CaptionProvider          string
	CaptionModel             string
	CaptionAPIKey            string
	CaptionEndpoint          string
	CaptionMinLength         int
	CaptionMaxLength         int
	CaptionNumBeams          int
	CaptionRepetitionPenalty float64
	CaptionLengthPenalty     float64
	CaptionTargetWords       int
	CaptionMaxImageSide      int
	CaptionTimeout           time.Duration

	// translation settings
	TranslationProvider string
	TranslationEndpoint string
	TranslationAPIKey   string
	TranslationModel    string
	TranslationTimeout  time.Duration

	// thumbnail generation settings
	ThumbnailMaxSize    int
	ThumbnailQueueSize  int
	NumThumbnailWorkers int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		zap.S().Warnf("config: invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		zap.S().Warnf("config: invalid %s '%s'. Using default %.2f. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		zap.S().Warnf("config: invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvListOrDefault(envVar string, defaultVal []string) []string {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(valStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// captionAPIKeyFor picks the provider specific key when CAPTION_API_KEY is unset
func captionAPIKeyFor(provider string) string {
	if key := os.Getenv("CAPTION_API_KEY"); key != "" {
		return key
	}
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("HF_API_TOKEN")
	}
}

func defaultCaptionModelFor(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "gemini":
		return "gemini-1.5-flash"
	default:
		return "Salesforce/blip-image-captioning-base"
	}
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "captions.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	absUploadsPath := filepath.Join(absMediaStorage, uploadsSubDir)

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	absThumbnailsPath := filepath.Join(absMediaStorage, thumbSubDir)

	mediaURL := getEnvOrDefault("MEDIA_URL", DefaultMediaURL)
	if !strings.HasSuffix(mediaURL, "/") {
		mediaURL += "/"
	}

	captionProvider := strings.ToLower(getEnvOrDefault("CAPTION_PROVIDER", "huggingface"))
	translationProvider := strings.ToLower(getEnvOrDefault("TRANSLATION_PROVIDER", "google"))

	minLen := getEnvIntOrDefault("CAPTION_MIN_LENGTH", defaultCaptionMinLength)
	maxLen := getEnvIntOrDefault("CAPTION_MAX_LENGTH", defaultCaptionMaxLength)
	if minLen > maxLen {
		return Config{}, fmt.Errorf("CAPTION_MIN_LENGTH (%d) must not exceed CAPTION_MAX_LENGTH (%d)", minLen, maxLen)
	}

	cfg := Config{
		Port:                     getEnvOrDefault("PORT", "8080"),
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "info"),
		DatabasePath:             dbPath,
		MediaStoragePath:         absMediaStorage,
		UploadsPath:              absUploadsPath,
		ThumbnailsPath:           absThumbnailsPath,
		MediaURL:                 mediaURL,
		MaxUploadFiles:           getEnvIntOrDefault("MAX_UPLOAD_FILES", defaultMaxUploadFiles),
		MaxUploadSizeMB:          getEnvIntOrDefault("MAX_UPLOAD_SIZE_MB", defaultMaxUploadSizeMB),
		RecentListLimit:          getEnvIntOrDefault("RECENT_LIMIT", defaultRecentLimit),
		AllowedOrigins:           getEnvListOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		CaptionProvider:          captionProvider,
		CaptionModel:             getEnvOrDefault("CAPTION_MODEL", defaultCaptionModelFor(captionProvider)),
		CaptionAPIKey:            captionAPIKeyFor(captionProvider),
		CaptionEndpoint:          os.Getenv("CAPTION_ENDPOINT"),
		CaptionMinLength:         minLen,
		CaptionMaxLength:         maxLen,
		CaptionNumBeams:          getEnvIntOrDefault("CAPTION_NUM_BEAMS", defaultCaptionNumBeams),
		CaptionRepetitionPenalty: getEnvFloatOrDefault("CAPTION_REPETITION_PENALTY", defaultCaptionRepPenal),
		CaptionLengthPenalty:     getEnvFloatOrDefault("CAPTION_LENGTH_PENALTY", defaultCaptionLenPenal),
		CaptionTargetWords:       getEnvIntOrDefault("CAPTION_TARGET_WORDS", defaultCaptionWords),
		CaptionMaxImageSide:      getEnvIntOrDefault("CAPTION_MAX_IMAGE_SIDE", defaultCaptionImageSide),
		CaptionTimeout:           getEnvDurationOrDefault("CAPTION_TIMEOUT", 120*time.Second),
		TranslationProvider:      translationProvider,
		TranslationEndpoint:      os.Getenv("TRANSLATION_ENDPOINT"),
		TranslationAPIKey:        getEnvOrDefault("TRANSLATION_API_KEY", os.Getenv("OPENAI_API_KEY")),
		TranslationModel:         getEnvOrDefault("TRANSLATION_MODEL", "gpt-4o-mini"),
		TranslationTimeout:       getEnvDurationOrDefault("TRANSLATION_TIMEOUT", 15*time.Second),
		ThumbnailMaxSize:         getEnvIntOrDefault("THUMBNAIL_MAX_SIZE", defaultThumbnailMaxSize),
		ThumbnailQueueSize:       getEnvIntOrDefault("THUMBNAIL_QUEUE_SIZE", defaultThumbnailQueueSize),
		NumThumbnailWorkers:      getEnvIntOrDefault("NUM_THUMBNAIL_WORKERS", defaultNumThumbnailWorkers),
	}

	return cfg, nil
}
