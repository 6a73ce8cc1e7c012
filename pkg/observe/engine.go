// Package observe keeps the page mirror decorated: it finds the containers of the current
// page, classifies rows as they appear, maintains derived counters and dispatches user
// actions to the API and the bulk workflows.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"nxenhance/pkg/bulk"
	"nxenhance/pkg/classify"
	"nxenhance/pkg/dom"
	"nxenhance/pkg/nextdns"
	"nxenhance/pkg/settings"
)

// Options configures an Engine.
type Options struct {
	Host     Host
	Client   *nextdns.Client
	Settings *settings.Store
	Logger   *slog.Logger
	// Level is raised to debug when the stored settings ask for debug mode.
	Level *slog.LevelVar
	// Bulk carries the pacing of bulk workflows; client, prompts and reload are filled in
	// per page.
	Bulk bulk.Options

	// SyncInterval paces passes when Run is used. Default 250ms.
	SyncInterval time.Duration
	// ScanInterval is the polling fallback for missed row insertions. Default 1s; a
	// negative value scans on every pass.
	ScanInterval time.Duration
	// MenuInterval paces the dropdown menu scan on the logs page. Default 1200ms.
	MenuInterval time.Duration
	// RestoreDelay is how long a failed button shows its error. Default 2s.
	RestoreDelay time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Engine drives one browser tab. All DOM work happens on the goroutine calling Pass or
// Run; API calls run in background goroutines that post their UI effects back as tasks.
type Engine struct {
	host       Host
	doc        *dom.Document
	base       *nextdns.Client
	store      *settings.Store
	classifier *classify.Classifier
	bulkOpts   bulk.Options
	log        *slog.Logger

	syncInterval time.Duration
	scanInterval time.Duration
	menuInterval time.Duration
	restoreDelay time.Duration
	now          func() time.Time

	// Loop state.
	location string
	page     Page
	profile  string
	gen      uint64
	client   *nextdns.Client
	bulk     *bulk.Orchestrator
	handler  pageHandler

	mu    sync.Mutex
	tasks []task
	wake  chan struct{}
	jobs  sync.WaitGroup
	busy  sync.Mutex
}

type task struct {
	gen uint64
	fn  func()
}

// pageHandler decorates one kind of page. step runs once per pass on the engine loop.
type pageHandler interface {
	step(ctx context.Context)
	close()
}

// New creates an Engine for opts.Host.
func New(opts Options) *Engine {
	e := &Engine{
		host:         opts.Host,
		doc:          opts.Host.Document(),
		base:         opts.Client,
		store:        opts.Settings,
		bulkOpts:     opts.Bulk,
		log:          opts.Logger,
		syncInterval: opts.SyncInterval,
		scanInterval: opts.ScanInterval,
		menuInterval: opts.MenuInterval,
		restoreDelay: opts.RestoreDelay,
		now:          opts.Now,
		wake:         make(chan struct{}, 1),
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.base == nil {
		e.base = nextdns.New(nextdns.Options{Logger: e.log})
	}
	if e.syncInterval <= 0 {
		e.syncInterval = 250 * time.Millisecond
	}
	if e.scanInterval < 0 {
		e.scanInterval = 0
	} else if e.scanInterval == 0 {
		e.scanInterval = time.Second
	}
	if e.menuInterval <= 0 {
		e.menuInterval = 1200 * time.Millisecond
	}
	if e.restoreDelay <= 0 {
		e.restoreDelay = 2 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.store != nil && e.store.Snapshot().DebugMode && opts.Level != nil {
		opts.Level.Set(slog.LevelDebug)
	}
	e.classifier = classify.New(e.store, e.log)
	e.client = e.base
	return e
}

// Run passes until ctx is done. A failed pass is logged and retried on the next tick.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()
	defer e.closeHandler()

	e.log.Info("engine started", "interval", e.syncInterval)
	for {
		if err := e.Pass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-e.wake:
		}
	}
}

// Pass performs one synchronisation round: flush edits and pull page changes, follow
// location changes, run finished background tasks, let the page handler work and finally
// dispatch the collected user events.
func (e *Engine) Pass(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("pass panicked", "panic", r)
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()

	events, err := e.host.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync page: %w", err)
	}
	location, err := e.host.Location(ctx)
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if location != e.location {
		e.reinit(location)
	}

	e.runTasks()
	if e.handler != nil {
		e.handler.step(ctx)
	}
	for _, ev := range events {
		e.dispatch(ctx, ev)
	}
	return nil
}

// Wait blocks until every background request and job started so far has finished.
func (e *Engine) Wait() {
	e.jobs.Wait()
}

// Page returns the kind of the page currently handled.
func (e *Engine) Page() Page {
	return e.page
}

// Counters returns the log counters of the last pass. It is zero off the logs page.
func (e *Engine) Counters() Counters {
	if logs, ok := e.handler.(*logsPage); ok {
		return logs.counters
	}
	return Counters{}
}

func (e *Engine) reinit(location string) {
	e.closeHandler()
	e.gen++
	e.location = location
	e.page = PageOf(location)

	profile, err := nextdns.ProfileFromLocation(location)
	if err != nil {
		e.log.Debug("no profile in location", "location", location)
	}
	e.profile = profile
	e.client = e.base.WithProfile(profile)

	opts := e.bulkOpts
	opts.Client = e.client
	opts.Prompt = e.host
	opts.Reload = e.host
	opts.Progress = &pageProgress{e: e, gen: e.gen}
	if opts.Logger == nil {
		opts.Logger = e.log
	}
	e.bulk = bulk.New(opts)

	switch e.page {
	case PageLogs:
		e.handler = newLogsPage(e)
	case PageLists:
		e.handler = newListsPage(e, location)
	case PagePrivacy:
		e.handler = &privacyPage{e: e}
	case PageSecurity:
		e.handler = &securityPage{e: e}
	case PageSettings:
		e.handler = &settingsPage{e: e}
	default:
		e.handler = nil
	}
	e.log.Info("page changed", "location", location, "page", e.page, "generation", e.gen)
}

func (e *Engine) closeHandler() {
	if e.handler != nil {
		e.handler.close()
		e.handler = nil
	}
}

// post queues fn to run on the loop. Tasks of an earlier generation are dropped.
func (e *Engine) post(gen uint64, fn func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task{gen: gen, fn: fn})
	e.mu.Unlock()
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) runTasks() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()

	for _, t := range tasks {
		if t.gen != e.gen {
			e.log.Debug("dropping task of previous page", "generation", t.gen)
			continue
		}
		t.fn()
	}
}

// background runs fn outside the loop and tracks it for Wait.
func (e *Engine) background(fn func()) {
	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		fn()
	}()
}

// startJob runs a bulk workflow unless another one is still running.
func (e *Engine) startJob(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if !e.busy.TryLock() {
		e.log.Warn("bulk job already running", "job", name)
		return
	}
	e.log.Info("starting bulk job", "job", name)
	e.background(func() {
		defer e.busy.Unlock()
		if err := fn(ctx); err != nil {
			e.log.Warn("bulk job ended with error", "job", name, "error", err)
			return
		}
		e.log.Info("bulk job finished", "job", name)
	})
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
