package workers

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/captionsys/media"
	"github.com/camden-git/captionsys/metrics"
	"github.com/camden-git/captionsys/realtime"
)

type ThumbnailJob struct {
	ImageID      uint
	RelativePath string // original, relative to the storage root
}

// ThumbnailRecorder persists where a thumbnail was written
type ThumbnailRecorder interface {
	Set(imagePath, thumbnailPath string, generatedAt int64) error
}

// ThumbnailQueue is the part of ThumbnailGenerator the upload pipeline uses
type ThumbnailQueue interface {
	QueueJob(job ThumbnailJob) bool
}

type ThumbnailGenerator struct {
	JobQueue  chan ThumbnailJob
	MaxSize   int
	Store     media.Store
	Processor *media.Processor
	Recorder  ThumbnailRecorder
	Hub       realtime.Broadcaster
	Wg        sync.WaitGroup
	StopChan  chan struct{}
	Pending   map[string]bool
	Mutex     sync.Mutex
	stopOnce  sync.Once
	log       *zap.SugaredLogger
}

func NewThumbnailGenerator(store media.Store, processor *media.Processor, recorder ThumbnailRecorder, hub realtime.Broadcaster,
	maxSize, queueSize, numWorkers int, logger *zap.SugaredLogger) *ThumbnailGenerator {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if maxSize <= 0 {
		maxSize = 300
	}
	if hub == nil {
		hub = realtime.NopBroadcaster{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	gen := &ThumbnailGenerator{
		JobQueue:  make(chan ThumbnailJob, queueSize),
		MaxSize:   maxSize,
		Store:     store,
		Processor: processor,
		Recorder:  recorder,
		Hub:       hub,
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
		log:       logger,
	}

	gen.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go gen.worker(i)
	}
	logger.Infof("workers: started %d thumbnail worker(s) with queue size %d", numWorkers, queueSize)

	return gen
}

func (tg *ThumbnailGenerator) worker(id int) {
	defer tg.Wg.Done()
	tg.log.Debugf("workers: thumbnail worker %d started", id)
	for {
		select {
		case job, ok := <-tg.JobQueue:
			if !ok {
				tg.log.Debugf("workers: thumbnail worker %d stopping: job queue closed", id)
				return
			}
			metrics.ThumbnailQueueDepth.Set(float64(len(tg.JobQueue)))
			tg.processJob(job)
			tg.Mutex.Lock()
			delete(tg.Pending, job.RelativePath)
			tg.Mutex.Unlock()

		case <-tg.StopChan:
			tg.log.Debugf("workers: thumbnail worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (tg *ThumbnailGenerator) processJob(job ThumbnailJob) {
	fullPath, err := tg.Store.GetFullPath(job.RelativePath)
	if err != nil {
		tg.fail(job, err)
		return
	}
	if _, err := os.Stat(fullPath); err != nil {
		tg.fail(job, err)
		return
	}

	img, err := media.OpenRGB(fullPath)
	if err != nil {
		tg.fail(job, err)
		return
	}

	thumbPath, err := tg.Processor.GenerateThumbnail(img, job.RelativePath, tg.MaxSize)
	if err != nil {
		tg.fail(job, err)
		return
	}

	if err := tg.Recorder.Set(job.RelativePath, thumbPath, time.Now().Unix()); err != nil {
		tg.log.Errorf("workers: failed to record thumbnail for %s: %v", job.RelativePath, err)
		if delErr := tg.Store.Delete(thumbPath); delErr != nil {
			tg.log.Warnf("workers: failed to remove orphaned thumbnail %s: %v", thumbPath, delErr)
		}
		metrics.ThumbnailsTotal.WithLabelValues("failed").Inc()
		return
	}

	metrics.ThumbnailsTotal.WithLabelValues("generated").Inc()
	tg.Hub.Broadcast(realtime.Event{
		Type:  realtime.EventThumbnail,
		Path:  job.RelativePath,
		Extra: map[string]interface{}{"id": job.ImageID, "thumbnail_path": thumbPath},
	})
	tg.log.Debugf("workers: generated thumbnail for %s at %s", job.RelativePath, thumbPath)
}

func (tg *ThumbnailGenerator) fail(job ThumbnailJob, err error) {
	tg.log.Errorf("workers: thumbnail generation failed for %s: %v", job.RelativePath, err)
	metrics.ThumbnailsTotal.WithLabelValues("failed").Inc()
}

// QueueJob enqueues a job without blocking. It returns false when the image is
// already pending or the queue is full.
func (tg *ThumbnailGenerator) QueueJob(job ThumbnailJob) bool {
	tg.Mutex.Lock()
	if tg.Pending[job.RelativePath] {
		tg.Mutex.Unlock()
		return false
	}
	tg.Pending[job.RelativePath] = true
	tg.Mutex.Unlock()

	select {
	case tg.JobQueue <- job:
		metrics.ThumbnailQueueDepth.Set(float64(len(tg.JobQueue)))
		return true
	default:
		tg.log.Warnf("workers: thumbnail job queue full, dropping job for %s", job.RelativePath)
		metrics.ThumbnailsTotal.WithLabelValues("dropped").Inc()
		tg.Mutex.Lock()
		delete(tg.Pending, job.RelativePath)
		tg.Mutex.Unlock()
		return false
	}
}

func (tg *ThumbnailGenerator) Stop() {
	tg.stopOnce.Do(func() {
		tg.log.Info("workers: stopping thumbnail generator...")
		close(tg.StopChan)
		tg.Wg.Wait()
		tg.log.Info("workers: all thumbnail workers stopped")
	})
}
