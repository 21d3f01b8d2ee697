package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/clipkeeper/idgen"
	"github.com/hazyhaar/clipkeeper/internal/blob"
	"github.com/hazyhaar/clipkeeper/internal/imaging"
	"github.com/hazyhaar/clipkeeper/internal/store"
)

// job is one pending image capture. hash is set when the coordinator
// already hashed the raw bytes; the worker fills it in otherwise.
type job struct {
	id   string
	data []byte
	hash string
}

// imageWorker processes captured images off the capture loop so a large
// decode or a slow disk never stalls text capture. One goroutine drains a
// bounded queue; overflow drops the oldest job, never the newest, and a
// failed job is logged and skipped without taking the worker down.
type imageWorker struct {
	store     *store.Store
	blobs     *blob.Store
	gate      *Gate
	incognito *atomic.Bool
	notify    func(id int64, fresh bool)
	logger    *slog.Logger

	jobs  chan job
	newID func() string

	queued    atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

func newImageWorker(st *store.Store, blobs *blob.Store, gate *Gate, incognito *atomic.Bool, notify func(int64, bool), queueSize int, logger *slog.Logger) *imageWorker {
	return &imageWorker{
		store:     st,
		blobs:     blobs,
		gate:      gate,
		incognito: incognito,
		notify:    notify,
		logger:    logger,
		jobs:      make(chan job, queueSize),
		newID:     idgen.Prefixed("job_", idgen.UUIDv7()),
	}
}

// submit enqueues a job without ever blocking the caller. When the queue
// is full the oldest entry is discarded to make room.
func (w *imageWorker) submit(j job) {
	if j.id == "" {
		j.id = w.newID()
	}
	w.queued.Add(1)
	for {
		select {
		case w.jobs <- j:
			return
		default:
		}
		select {
		case old := <-w.jobs:
			w.dropped.Add(1)
			w.logger.Warn("monitor: image queue full, dropping oldest", "job", old.id)
		default:
		}
	}
}

func (w *imageWorker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-w.jobs:
			w.process(ctx, j)
		}
	}
}

func (w *imageWorker) process(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			w.failed.Add(1)
			w.logger.Error("monitor: image job panicked", "job", j.id, "panic", r)
		}
	}()

	if len(j.data) == 0 {
		return
	}
	if j.hash == "" {
		j.hash = store.HashBytes(j.data)
	}
	if w.incognito.Load() {
		w.gate.Observe(j.hash)
		return
	}
	if !w.gate.Accept(j.hash) {
		return
	}

	// Image settings are read per capture so changes apply immediately.
	maxDim, err := w.store.SettingInt(ctx, "max_image_size")
	if err != nil {
		w.logger.Warn("monitor: read max_image_size", "error", err)
	}
	quality, err := w.store.SettingInt(ctx, "image_quality")
	if err != nil {
		w.logger.Warn("monitor: read image_quality", "error", err)
	}

	res, err := imaging.Process(j.data, maxDim, quality)
	if err != nil {
		w.failed.Add(1)
		w.logger.Warn("monitor: decode image", "job", j.id, "bytes", len(j.data), "error", err)
		return
	}

	imagePath, err := w.blobs.WriteImage(ctx, j.hash, res.Data)
	if err != nil {
		w.failed.Add(1)
		w.logger.Error("monitor: write image", "job", j.id, "error", err)
		return
	}
	thumbPath := imagePath
	if res.Thumb != nil {
		if p, err := w.blobs.WriteThumb(ctx, j.hash, res.Thumb); err == nil {
			thumbPath = p
		} else {
			w.logger.Warn("monitor: write thumbnail", "job", j.id, "error", err)
		}
	}

	id, fresh, err := w.store.Add(ctx, store.Clip{
		Hash:        j.hash,
		Kind:        store.KindImage,
		Category:    "image",
		ImagePath:   imagePath,
		ThumbPath:   thumbPath,
		ImageWidth:  res.Width,
		ImageHeight: res.Height,
	})
	if err != nil {
		w.failed.Add(1)
		w.logger.Error("monitor: store image clip", "job", j.id, "error", err)
		return
	}
	w.processed.Add(1)
	w.logger.Debug("monitor: image captured",
		"job", j.id, "clip", id, "width", res.Width, "height", res.Height)
	w.notify(id, fresh)
}
