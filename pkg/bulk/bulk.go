// Package bulk sequences multi-item operations against the profile API: bulk add and
// delete, list clearing, and configuration import and export.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nxenhance/pkg/nextdns"
)

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("cancelled by user")

// Requester issues one API request. *nextdns.Client implements it.
type Requester interface {
	Request(ctx context.Context, method, path string, body any) (string, error)
}

// Prompter asks the user to confirm a step or tells them about a failure.
type Prompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
	Alert(ctx context.Context, message string) error
}

// Progress receives "please wait" messages while a job runs.
type Progress interface {
	Start(message string)
	Update(message string)
	Done()
}

// Reloader refreshes the page once a job has finished.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Options configures an Orchestrator. Zero values take the defaults below.
type Options struct {
	Client   Requester
	Prompt   Prompter
	Progress Progress
	Reload   Reloader
	Logger   *slog.Logger

	// ItemDelay separates item requests. Default 1s.
	ItemDelay time.Duration
	// DeleteLimit caps one bulk delete. Default 20.
	DeleteLimit int
	// ClearPolls bounds the post-clear verification. Default 30.
	ClearPolls int
	// PollInterval spaces clear verification and import completion checks. Default 1s.
	PollInterval time.Duration
	// Sleep waits between steps. Defaults to nextdns.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	defaultItemDelay    = time.Second
	defaultDeleteLimit  = 20
	defaultClearPolls   = 30
	defaultPollInterval = time.Second
)

// Orchestrator runs bulk workflows. Workflows never run item requests in parallel within
// one list.
type Orchestrator struct {
	client   Requester
	prompt   Prompter
	progress Progress
	reload   Reloader
	log      *slog.Logger

	itemDelay    time.Duration
	deleteLimit  int
	clearPolls   int
	pollInterval time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates an Orchestrator. Without a Prompter every confirmation is accepted and
// alerts are logged.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		client:       opts.Client,
		prompt:       opts.Prompt,
		progress:     opts.Progress,
		reload:       opts.Reload,
		log:          opts.Logger,
		itemDelay:    opts.ItemDelay,
		deleteLimit:  opts.DeleteLimit,
		clearPolls:   opts.ClearPolls,
		pollInterval: opts.PollInterval,
		sleep:        opts.Sleep,
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.prompt == nil {
		o.prompt = Unattended{Logger: o.log}
	}
	if o.progress == nil {
		o.progress = nopProgress{}
	}
	if o.itemDelay <= 0 {
		o.itemDelay = defaultItemDelay
	}
	if o.deleteLimit <= 0 {
		o.deleteLimit = defaultDeleteLimit
	}
	if o.clearPolls <= 0 {
		o.clearPolls = defaultClearPolls
	}
	if o.pollInterval <= 0 {
		o.pollInterval = defaultPollInterval
	}
	if o.sleep == nil {
		o.sleep = nextdns.Sleep
	}
	return o
}

// Unattended accepts every confirmation and logs alerts. It serves non-interactive runs.
type Unattended struct {
	Logger *slog.Logger
}

func (u Unattended) Confirm(_ context.Context, message string) (bool, error) {
	u.logger().Debug("confirmation assumed", "message", message)
	return true, nil
}

func (u Unattended) Alert(_ context.Context, message string) error {
	u.logger().Warn(message)
	return nil
}

func (u Unattended) logger() *slog.Logger {
	if u.Logger == nil {
		return slog.Default()
	}
	return u.Logger
}

type nopProgress struct{}

func (nopProgress) Start(string)  {}
func (nopProgress) Update(string) {}
func (nopProgress) Done()         {}

// Failure pairs an item with the error it produced.
type Failure[T any] struct {
	Item T
	Err  error
}

// Job tracks per-item progress of one workflow run.
type Job[T any] struct {
	Items     []T
	Processed int
	Succeeded int
	Skipped   int
	Failed    []Failure[T]
}

func newJob[T any](items []T) *Job[T] {
	return &Job[T]{Items: items}
}

func (j *Job[T]) skip() {
	j.Processed++
	j.Skipped++
}

func (j *Job[T]) finish(item T, err error) {
	j.Processed++
	if err != nil {
		j.Failed = append(j.Failed, Failure[T]{Item: item, Err: err})
		return
	}
	j.Succeeded++
}

// Err summarises failed items, or returns nil when every attempted item succeeded.
func (j *Job[T]) Err() error {
	if j == nil || len(j.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(j.Failed))
	for _, f := range j.Failed {
		errs = append(errs, fmt.Errorf("%v: %w", f.Item, f.Err))
	}
	return fmt.Errorf("%d of %d items failed: %w", len(j.Failed), len(j.Items), errors.Join(errs...))
}

func (o *Orchestrator) confirm(ctx context.Context, message string) error {
	ok, err := o.prompt.Confirm(ctx, message)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func (o *Orchestrator) alert(ctx context.Context, message string) {
	if err := o.prompt.Alert(ctx, message); err != nil {
		o.log.Warn("failed to show alert", "message", message, "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context) {
	o.progress.Done()
	if o.reload == nil {
		return
	}
	if err := o.reload.Reload(ctx); err != nil {
		o.log.Warn("reload failed", "error", err)
	}
}
