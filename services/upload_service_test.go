package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/captionsys/captioner"
	"github.com/camden-git/captionsys/database"
	"github.com/camden-git/captionsys/media"
	"github.com/camden-git/captionsys/models"
	"github.com/camden-git/captionsys/realtime"
	"github.com/camden-git/captionsys/repository"
	"github.com/camden-git/captionsys/workers"
)

type memoryRepo struct {
	mu      sync.Mutex
	records []models.CaptionedImage
	failOn  string
}

func (m *memoryRepo) Create(img *models.CaptionedImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && img.OriginalFilename == m.failOn {
		return errors.New("disk full")
	}
	img.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *img)
	return nil
}

func (m *memoryRepo) GetByID(id uint) (*models.CaptionedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

// newest first: records are appended in upload order
func (m *memoryRepo) ListAll() ([]models.CaptionedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CaptionedImage, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memoryRepo) ListRecent(limit int) ([]models.CaptionedImage, error) {
	all, _ := m.ListAll()
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryRepo) Search(filter database.CaptionFilter) ([]models.CaptionedImage, error) {
	return m.ListAll()
}

type fixedCaptioner struct {
	caption string
	err     error
	calls   int
}

func (f *fixedCaptioner) Name() string { return "fixed" }
func (f *fixedCaptioner) Caption(ctx context.Context, img image.Image, opts captioner.Options) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.caption, nil
}

type prefixTranslator struct {
	calls int
	fail  bool
}

func (p *prefixTranslator) Translate(ctx context.Context, text string, target models.Language) string {
	p.calls++
	if p.fail {
		return text
	}
	return fmt.Sprintf("[%s] %s", target, text)
}

type queueRecorder struct {
	jobs []workers.ThumbnailJob
}

func (q *queueRecorder) QueueJob(job workers.ThumbnailJob) bool {
	q.jobs = append(q.jobs, job)
	return true
}

type eventRecorder struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (e *eventRecorder) Broadcast(ev realtime.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventRecorder) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.NRGBA{R: 1, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func fileOf(name string, data []byte) UploadFile {
	return UploadFile{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type fixture struct {
	store      *media.LocalStorage
	repo       *memoryRepo
	captioner  *fixedCaptioner
	translator *prefixTranslator
	queue      *queueRecorder
	hub        *eventRecorder
	svc        *UploadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{
		media.AssetTypeUpload:    "uploads",
		media.AssetTypeThumbnail: "thumbnails",
	}, nil)
	require.NoError(t, err)

	f := &fixture{
		store:      store,
		repo:       &memoryRepo{},
		captioner:  &fixedCaptioner{caption: "a grey square on a plain background"},
		translator: &prefixTranslator{},
		queue:      &queueRecorder{},
		hub:        &eventRecorder{},
	}
	f.svc = NewUploadService(store, f.repo, f.captioner, f.translator, f.queue, f.hub, UploadServiceConfig{
		Options:  captioner.DefaultOptions(),
		MaxFiles: 5,
		MediaURL: "/media/",
	}, nil)
	f.svc.now = func() time.Time { return time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC) }
	return f
}

func TestProcess_NoFiles(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), "en", nil)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.EqualError(t, err, "no images uploaded")
}

func TestProcess_EnglishLeavesTranslatedFieldsEmpty(t *testing.T) {
	f := newFixture(t)
	data := pngBytes(t, 40, 20)

	resp, err := f.svc.Process(context.Background(), "", []UploadFile{fileOf("square.png", data)})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	res := resp.Results[0]
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "a grey square on a plain background", res.Caption)
	assert.Equal(t, res.CaptionEn, res.Caption)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 20, res.Height)
	assert.Equal(t, models.HumanFileSize(int64(len(data))), res.Size)
	assert.Equal(t, "/media/uploads/2024/03/07/square.png", res.ImageURL)
	assert.Equal(t, 0, f.translator.calls)

	require.Len(t, f.repo.records, 1)
	rec := f.repo.records[0]
	assert.Nil(t, rec.CaptionEs)
	assert.Nil(t, rec.CaptionFr)
	assert.Nil(t, rec.CaptionDe)
	assert.Nil(t, rec.CaptionHi)
	assert.Nil(t, rec.CaptionZh)
	assert.Equal(t, int64(len(data)), rec.FileSize)
	assert.Len(t, rec.Checksum, 64)
	assert.Equal(t, "image/png", rec.ContentType)
	assert.Equal(t, "fixed", rec.CaptionSource)

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, "uploads/2024/03/07/square.png", f.queue.jobs[0].RelativePath)
	assert.Equal(t, []string{realtime.EventProcessing, realtime.EventCaptioned}, f.hub.types())
}

func TestProcess_EachLanguagePopulatesOnlyItsField(t *testing.T) {
	for _, lang := range models.SupportedLanguages[1:] {
		lang := lang
		t.Run(string(lang), func(t *testing.T) {
			f := newFixture(t)
			resp, err := f.svc.Process(context.Background(), " "+string(lang)+" ", []UploadFile{fileOf("a.png", pngBytes(t, 8, 8))})
			require.NoError(t, err)
			require.True(t, resp.Results[0].Success)

			want := fmt.Sprintf("[%s] a grey square on a plain background", lang)
			assert.Equal(t, want, resp.Results[0].Caption)
			assert.Equal(t, "a grey square on a plain background", resp.Results[0].CaptionEn)

			rec := f.repo.records[0]
			for code, value := range rec.Captions() {
				switch code {
				case models.LanguageEnglish:
					require.NotNil(t, value)
					assert.Equal(t, "a grey square on a plain background", *value)
				case lang:
					require.NotNil(t, value)
					assert.Equal(t, want, *value)
				default:
					assert.Nil(t, value, "field %s should stay empty", code)
				}
			}
		})
	}
}

func TestProcess_UnsupportedLanguageTranslatesWithoutStoring(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Process(context.Background(), "it", []UploadFile{fileOf("a.png", pngBytes(t, 8, 8))})
	require.NoError(t, err)

	assert.Equal(t, "[it] a grey square on a plain background", resp.Results[0].Caption)
	assert.Equal(t, "it", resp.Results[0].Language)
	for code, value := range f.repo.records[0].Captions() {
		if code != models.LanguageEnglish {
			assert.Nil(t, value)
		}
	}
}

func TestProcess_TranslationFailureKeepsEnglish(t *testing.T) {
	f := newFixture(t)
	f.translator.fail = true

	resp, err := f.svc.Process(context.Background(), "fr", []UploadFile{fileOf("a.png", pngBytes(t, 8, 8))})
	require.NoError(t, err)

	res := resp.Results[0]
	require.True(t, res.Success)
	assert.Equal(t, "a grey square on a plain background", res.Caption)
	require.NotNil(t, f.repo.records[0].CaptionFr)
	assert.Equal(t, "a grey square on a plain background", *f.repo.records[0].CaptionFr)
}

func TestProcess_EmptyCaptionIsStillRecorded(t *testing.T) {
	f := newFixture(t)
	f.captioner.caption = ""

	resp, err := f.svc.Process(context.Background(), "en", []UploadFile{fileOf("blank.png", pngBytes(t, 8, 8))})
	require.NoError(t, err)

	res := resp.Results[0]
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "", res.Caption)
	assert.Equal(t, "", res.CaptionEn)
	require.Len(t, f.repo.records, 1)
	assert.Equal(t, "", f.repo.records[0].CaptionEn)
	assert.Len(t, f.queue.jobs, 1)
}

func TestProcess_LimitsFilesAndReportsSkipped(t *testing.T) {
	f := newFixture(t)
	data := pngBytes(t, 8, 8)

	var files []UploadFile
	for i := 1; i <= 7; i++ {
		files = append(files, fileOf(fmt.Sprintf("img%d.png", i), data))
	}

	resp, err := f.svc.Process(context.Background(), "en", files)
	require.NoError(t, err)

	require.Len(t, resp.Results, 5)
	for i, r := range resp.Results {
		assert.Equal(t, fmt.Sprintf("img%d.png", i+1), r.Filename)
		assert.True(t, r.Success)
	}
	assert.Equal(t, []string{"img6.png", "img7.png"}, resp.Skipped)
	assert.Len(t, f.repo.records, 5)
	assert.Equal(t, 5, f.captioner.calls)
}

func TestProcess_BadFileIsAPerFileFailure(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Process(context.Background(), "en", []UploadFile{
		fileOf("good1.png", pngBytes(t, 8, 8)),
		fileOf("broken.jpg", []byte("this is not an image")),
		fileOf("good2.png", pngBytes(t, 8, 8)),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.Equal(t, "broken.jpg", resp.Results[1].Filename)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.True(t, resp.Results[2].Success)
	assert.Len(t, f.repo.records, 2)

	// the rejected upload does not stay on disk
	_, err = os.Stat(f.store.BasePath() + "/uploads/2024/03/07/broken.jpg")
	assert.True(t, os.IsNotExist(err))
	assert.Contains(t, f.hub.types(), realtime.EventError)
}

func TestProcess_CaptionErrorIsAPerFileFailure(t *testing.T) {
	f := newFixture(t)
	f.captioner.err = errors.New("inference endpoint unavailable")

	resp, err := f.svc.Process(context.Background(), "es", []UploadFile{fileOf("a.png", pngBytes(t, 8, 8))})
	require.NoError(t, err)
	require.False(t, resp.Results[0].Success)
	assert.Contains(t, resp.Results[0].Error, "inference endpoint unavailable")
	assert.Equal(t, 0, f.translator.calls)
	assert.Empty(t, f.repo.records)
	assert.Empty(t, f.queue.jobs)
}

func TestProcess_RepositoryErrorIsAPerFileFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failOn = "a.png"

	resp, err := f.svc.Process(context.Background(), "en", []UploadFile{fileOf("a.png", pngBytes(t, 8, 8))})
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Success)
	assert.Contains(t, resp.Results[0].Error, "disk full")
}

func TestProcess_OpenErrorIsAPerFileFailure(t *testing.T) {
	f := newFixture(t)
	broken := UploadFile{Filename: "gone.png", Open: func() (io.ReadCloser, error) {
		return nil, errors.New("multipart part vanished")
	}}

	resp, err := f.svc.Process(context.Background(), "en", []UploadFile{broken})
	require.NoError(t, err)
	assert.False(t, resp.Results[0].Success)
	assert.Equal(t, "gone.png", resp.Results[0].Filename)
}

func TestFileResult_JSONShapes(t *testing.T) {
	ok, err := json.Marshal(FileResult{Success: true, ID: 3, Filename: "a.png", Caption: "c", CaptionEn: "c",
		ImageURL: "/media/a.png", Width: 1, Height: 2, Size: "1.0 KB", Language: "en"})
	require.NoError(t, err)
	var okMap map[string]any
	require.NoError(t, json.Unmarshal(ok, &okMap))
	assert.Equal(t, true, okMap["success"])
	assert.Equal(t, "1.0 KB", okMap["size"])
	assert.NotContains(t, okMap, "error")

	bad, err := json.Marshal(FileResult{Filename: "b.png", Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"filename":"b.png","error":"boom"}`, string(bad))
}

func TestTruncateFilename(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(truncateFilename(string(long))), 255)
	assert.Equal(t, "short.png", truncateFilename("short.png"))
}
