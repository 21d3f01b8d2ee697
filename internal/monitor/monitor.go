// CLAUDE:SUMMARY Capture pipeline: redundant trigger sources feed one loop that reads, dedups, classifies, and stores clips.
// Package monitor watches the system clipboard and turns its changes into
// stored clips. Three redundant sources (backend change signals, a poll
// ticker, an external watcher process) feed triggers into a single
// goroutine that owns all pipeline state; clipboard reads and image
// processing run off that goroutine and post their results back to it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/clipkeeper/internal/blob"
	"github.com/hazyhaar/clipkeeper/internal/clipboard"
	"github.com/hazyhaar/clipkeeper/internal/detect"
	"github.com/hazyhaar/clipkeeper/internal/store"
	"github.com/hazyhaar/clipkeeper/internal/title"
)

// Options tunes the capture pipeline. The zero value is usable.
type Options struct {
	// PollInterval is the fallback poll cadence. Default 100ms.
	PollInterval time.Duration
	// WatchCommand is the external watcher to spawn, argv-style. Empty
	// disables the watcher source.
	WatchCommand []string
	// QueueSize bounds the image worker queue. Default 128.
	QueueSize int
	// Titles resolves page titles for captured URLs. Nil disables.
	Titles *title.Fetcher
	// OnClip is invoked from the capture loop after every stored or
	// updated clip, with fresh reporting whether the row is new rather
	// than a bumped duplicate. Must not block.
	OnClip func(id int64, fresh bool)
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 128
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Monitor is the clipboard capture pipeline. Create with New, start with
// Run. All exported methods are safe to call from any goroutine.
type Monitor struct {
	clip   clipboard.Clipboard
	store  *store.Store
	opts   Options
	logger *slog.Logger

	gate   *Gate
	images *imageWorker

	triggers chan trigger
	tasks    chan func()
	done     chan struct{}

	paused    atomic.Bool
	incognito atomic.Bool

	// Owned by the capture loop, never touched elsewhere.
	reading bool
	pending bool
	lastRaw string

	triggersSeen atomic.Int64
	readsDone    atomic.Int64
	clipsStored  atomic.Int64
	dupesSkipped atomic.Int64
}

// New wires a Monitor over the given clipboard backend and stores.
func New(clip clipboard.Clipboard, st *store.Store, blobs *blob.Store, opts Options) *Monitor {
	opts.defaults()
	m := &Monitor{
		clip:     clip,
		store:    st,
		opts:     opts,
		logger:   opts.Logger,
		gate:     &Gate{},
		triggers: make(chan trigger, 64),
		tasks:    make(chan func(), 32),
		done:     make(chan struct{}),
	}
	m.images = newImageWorker(st, blobs, m.gate, &m.incognito, func(id int64, fresh bool) {
		m.post(func() { m.notify(id, fresh) })
	}, opts.QueueSize, m.logger)
	return m
}

// Run starts the sources, the image worker, and the capture loop, and
// blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if v, err := m.store.SettingBool(ctx, "paused"); err == nil {
		m.paused.Store(v)
	}
	if v, err := m.store.SettingBool(ctx, "incognito"); err == nil {
		m.incognito.Store(v)
	}

	sources := m.sources()
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error { return src.run(ctx, m.triggers) })
	}
	g.Go(func() error { return m.images.run(ctx) })
	g.Go(func() error { return m.loop(ctx) })

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.name()
	}
	m.logger.Info("monitor: started",
		"sources", strings.Join(names, ","),
		"poll_interval", m.opts.PollInterval,
		"paused", m.paused.Load(),
		"incognito", m.incognito.Load())
	return g.Wait()
}

func (m *Monitor) sources() []source {
	srcs := []source{&pollSource{interval: m.opts.PollInterval}}
	if ch := m.clip.Changed(); ch != nil {
		srcs = append(srcs, &signalSource{ch: ch})
	}
	if len(m.opts.WatchCommand) > 0 {
		srcs = append(srcs, &watchSource{command: m.opts.WatchCommand, logger: m.logger})
	}
	return srcs
}

// loop is the owning goroutine. Every mutation of pipeline state happens
// here, either directly from a trigger or through a posted task.
func (m *Monitor) loop(ctx context.Context) error {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor: stopped")
			return nil
		case t := <-m.triggers:
			m.ingest(ctx, t)
		case fn := <-m.tasks:
			fn()
		}
	}
}

// post schedules fn on the capture loop. Calls after shutdown are
// silently discarded.
func (m *Monitor) post(fn func()) {
	select {
	case m.tasks <- fn:
	case <-m.done:
	}
}

func (m *Monitor) ingest(ctx context.Context, t trigger) {
	m.triggersSeen.Add(1)
	if m.paused.Load() {
		return
	}
	if t.snapshot != nil {
		m.images.submit(job{data: t.snapshot.image})
		return
	}
	m.requestRead(ctx)
}

// requestRead starts an asynchronous clipboard read unless one is already
// in flight, in which case a single follow-up is remembered. Any burst of
// triggers therefore collapses into at most the running read plus one
// more, which is enough to observe the final clipboard state.
func (m *Monitor) requestRead(ctx context.Context) {
	if m.reading {
		m.pending = true
		return
	}
	m.reading = true
	go func() {
		res := m.readOnce(ctx)
		m.post(func() { m.finishRead(ctx, res) })
	}()
}

type readResult struct {
	kind  string // "text", "image", or "" when nothing readable
	text  string
	image []byte
	err   error
}

// readOnce runs off the capture loop. Reads carry no deadline of their
// own; large transfers take as long as they take, and ctx cancellation
// ends them on shutdown.
func (m *Monitor) readOnce(ctx context.Context) readResult {
	f, err := m.clip.Formats(ctx)
	if err != nil {
		return readResult{err: fmt.Errorf("formats: %w", err)}
	}
	switch {
	case f.HasImage:
		data, err := m.clip.ReadImage(ctx)
		if err != nil {
			if errors.Is(err, clipboard.ErrEmpty) {
				return readResult{}
			}
			return readResult{err: fmt.Errorf("read image: %w", err)}
		}
		return readResult{kind: "image", image: data}
	case f.HasText:
		text, err := m.clip.ReadText(ctx)
		if err != nil {
			if errors.Is(err, clipboard.ErrEmpty) {
				return readResult{}
			}
			return readResult{err: fmt.Errorf("read text: %w", err)}
		}
		return readResult{kind: "text", text: text}
	}
	return readResult{}
}

func (m *Monitor) finishRead(ctx context.Context, res readResult) {
	m.reading = false
	m.readsDone.Add(1)
	if m.pending {
		m.pending = false
		m.requestRead(ctx)
	}
	if res.err != nil {
		m.logger.Debug("monitor: clipboard read failed", "error", res.err)
		return
	}
	switch res.kind {
	case "image":
		m.handleImage(res.image)
	case "text":
		m.handleText(ctx, res.text)
	}
}

// handleImage hands raw image bytes to the worker. The raw-hash memo
// short-circuits the repeated observations a poll source produces for
// unchanged content, before any decode work is queued.
func (m *Monitor) handleImage(data []byte) {
	if len(data) == 0 {
		return
	}
	hash := store.HashBytes(data)
	if hash == m.lastRaw {
		m.dupesSkipped.Add(1)
		return
	}
	m.lastRaw = hash
	m.images.submit(job{data: data, hash: hash})
}

// handleText runs the text pipeline: trim, memo, filter script, dedup
// gate, classify, store, notify.
func (m *Monitor) handleText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	raw := store.HashText(text)
	if raw == m.lastRaw {
		m.dupesSkipped.Add(1)
		return
	}
	m.lastRaw = raw

	if path, err := m.store.Setting(ctx, "script_path"); err == nil && path != "" {
		text = runScript(ctx, m.logger, path, text)
		if text == "" {
			// The script swallowed it. The gate still learns the original
			// hash so this clipboard state reads as seen everywhere.
			m.gate.Observe(raw)
			return
		}
	}

	hash := store.HashText(text)
	if m.incognito.Load() {
		m.gate.Observe(hash)
		return
	}
	if !m.gate.Accept(hash) {
		m.dupesSkipped.Add(1)
		return
	}

	res := detect.Classify(text)
	id, fresh, err := m.store.Add(ctx, store.Clip{
		Content:   text,
		Hash:      hash,
		Kind:      store.KindText,
		Category:  res.Category,
		Subtype:   res.Subtype,
		Metadata:  res.Metadata,
		Sensitive: res.Sensitive,
	})
	if err != nil {
		m.logger.Error("monitor: store clip", "error", err)
		return
	}
	m.clipsStored.Add(1)
	m.logger.Debug("monitor: text captured",
		"clip", id, "category", res.Category, "fresh", fresh, "chars", len(text))
	m.notify(id, fresh)

	if res.Category == detect.CategoryURL && m.opts.Titles != nil {
		if u := res.Metadata["url"]; u != "" {
			m.fetchTitle(ctx, id, u)
		}
	}
}

// fetchTitle resolves the page title in the background and posts the
// metadata merge back to the capture loop. Listeners get a second
// notification once the title lands.
func (m *Monitor) fetchTitle(ctx context.Context, clipID int64, url string) {
	go func() {
		t, err := m.opts.Titles.Fetch(ctx, url)
		if err != nil {
			m.logger.Debug("monitor: title fetch failed", "url", url, "error", err)
			return
		}
		if t == "" {
			return
		}
		m.post(func() {
			if err := m.store.MergeMetadata(ctx, clipID, map[string]string{"page_title": t}); err != nil {
				m.logger.Warn("monitor: merge page title", "clip", clipID, "error", err)
				return
			}
			m.notify(clipID, false)
		})
	}()
}

func (m *Monitor) notify(id int64, fresh bool) {
	if m.opts.OnClip != nil {
		m.opts.OnClip(id, fresh)
	}
}

// ObserveHash marks content as already seen so that writing it back to
// the clipboard, as paste-from-history does, is not captured again.
func (m *Monitor) ObserveHash(hash string) {
	m.gate.Observe(hash)
	m.post(func() { m.lastRaw = hash })
}

// SetPaused toggles capture entirely and persists the choice.
func (m *Monitor) SetPaused(ctx context.Context, on bool) error {
	m.paused.Store(on)
	m.logger.Info("monitor: paused", "on", on)
	return m.store.SetSetting(ctx, "paused", strconv.FormatBool(on))
}

// SetIncognito keeps the pipeline observing without storing anything and
// persists the choice.
func (m *Monitor) SetIncognito(ctx context.Context, on bool) error {
	m.incognito.Store(on)
	m.logger.Info("monitor: incognito", "on", on)
	return m.store.SetSetting(ctx, "incognito", strconv.FormatBool(on))
}

func (m *Monitor) Paused() bool    { return m.paused.Load() }
func (m *Monitor) Incognito() bool { return m.incognito.Load() }

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Triggers        int64 `json:"triggers"`
	Reads           int64 `json:"reads"`
	Stored          int64 `json:"stored"`
	Duplicates      int64 `json:"duplicates"`
	ImagesQueued    int64 `json:"images_queued"`
	ImagesProcessed int64 `json:"images_processed"`
	ImagesDropped   int64 `json:"images_dropped"`
	ImagesFailed    int64 `json:"images_failed"`
	QueueDepth      int   `json:"queue_depth"`
	Paused          bool  `json:"paused"`
	Incognito       bool  `json:"incognito"`
}

// Stats returns current counter values.
func (m *Monitor) Stats() Stats {
	return Stats{
		Triggers:        m.triggersSeen.Load(),
		Reads:           m.readsDone.Load(),
		Stored:          m.clipsStored.Load(),
		Duplicates:      m.dupesSkipped.Load(),
		ImagesQueued:    m.images.queued.Load(),
		ImagesProcessed: m.images.processed.Load(),
		ImagesDropped:   m.images.dropped.Load(),
		ImagesFailed:    m.images.failed.Load(),
		QueueDepth:      len(m.images.jobs),
		Paused:          m.paused.Load(),
		Incognito:       m.incognito.Load(),
	}
}
