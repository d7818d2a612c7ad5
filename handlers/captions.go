package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/camden-git/captionsys/database"
	"github.com/camden-git/captionsys/models"
	"github.com/camden-git/captionsys/repository"
	"github.com/camden-git/captionsys/services"
)

const defaultRecentLimit = 10

// Uploader runs the caption pipeline over an upload
type Uploader interface {
	Process(ctx context.Context, rawLanguage string, files []services.UploadFile) (*services.UploadResponse, error)
}

// CaptionReader serves stored captions
type CaptionReader interface {
	Recent(limit int) ([]services.CaptionView, error)
	Search(filter database.CaptionFilter) ([]services.CaptionView, error)
	Get(id uint, lang models.Language) (*services.CaptionDetail, error)
	Export() ([]services.ExportEntry, error)
}

type CaptionHandler struct {
	Uploads         Uploader
	Captions        CaptionReader
	RecentLimit     int
	MaxUploadSizeMB int
	Log             *zap.SugaredLogger
}

func (h *CaptionHandler) logger() *zap.SugaredLogger {
	if h.Log == nil {
		return zap.NewNop().Sugar()
	}
	return h.Log
}

// Index lists the most recent captions
func (h *CaptionHandler) Index(w http.ResponseWriter, r *http.Request) {
	limit := h.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	views, err := h.Captions.Recent(limit)
	if err != nil {
		h.logger().Errorf("handlers: error listing recent captions: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load recent images")
		return
	}
	if views == nil {
		views = []services.CaptionView{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recent_images": views})
}

func (h *CaptionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxMB := h.MaxUploadSizeMB
	if maxMB <= 0 {
		maxMB = 32
	}
	maxBytes := int64(maxMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var files []services.UploadFile
	language := ""
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			h.logger().Warnf("handlers: invalid upload body: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid upload: "+err.Error())
			return
		}
		// a non-multipart body cannot carry files
		language = r.FormValue("language")
	} else {
		defer r.MultipartForm.RemoveAll()
		files = services.FilesFromMultipart(r.MultipartForm.File["images"])
		language = r.FormValue("language")
	}

	resp, err := h.Uploads.Process(r.Context(), language, files)
	if err != nil {
		if errors.Is(err, services.ErrNoFiles) {
			writeError(w, http.StatusBadRequest, "No images uploaded")
			return
		}
		h.logger().Errorf("handlers: upload failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Upload failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Download serves every caption as an indented captions.json attachment
func (h *CaptionHandler) Download(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Captions.Export()
	if err != nil {
		h.logger().Errorf("handlers: export failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to export captions")
		return
	}
	if entries == nil {
		entries = []services.ExportEntry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		h.logger().Errorf("handlers: error encoding export: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to export captions")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="captions.json"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger().Warnf("handlers: error writing export: %v", err)
	}
}

const dateLayout = "2006-01-02"

// parseCaptionFilter reads the search query string; "to" is inclusive of the whole day
func parseCaptionFilter(r *http.Request) (database.CaptionFilter, error) {
	q := r.URL.Query()
	filter := database.CaptionFilter{Query: strings.TrimSpace(q.Get("q"))}

	if raw := q.Get("from"); raw != "" {
		from, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return filter, errors.New("invalid 'from' date, expected YYYY-MM-DD")
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return filter, errors.New("invalid 'to' date, expected YYYY-MM-DD")
		}
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, errors.New("'from' must not be after 'to'")
	}

	if raw := q.Get("language"); raw != "" {
		lang := models.ParseLanguage(raw)
		if !lang.IsSupported() {
			return filter, errors.New("unsupported language: " + raw)
		}
		filter.Language = lang
	}

	if raw := q.Get("sort"); raw != "" {
		if !database.IsValidSortOrder(raw) {
			return filter, errors.New("invalid sort order: " + raw)
		}
		filter.Sort = raw
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

func (h *CaptionHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCaptionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, err := h.Captions.Search(filter)
	if err != nil {
		h.logger().Errorf("handlers: caption search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	if views == nil {
		views = []services.CaptionView{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": views, "count": len(views)})
}

func (h *CaptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "Invalid caption id")
		return
	}

	view, err := h.Captions.Get(uint(id), models.ParseLanguage(r.URL.Query().Get("lang")))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Caption not found")
			return
		}
		h.logger().Errorf("handlers: error loading caption %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to load caption")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
