// Package cli implements the nxenhance command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"nxenhance/pkg/browser"
	"nxenhance/pkg/bulk"
	"nxenhance/pkg/config"
	"nxenhance/pkg/logger"
	"nxenhance/pkg/nextdns"
	"nxenhance/pkg/settings"
	"nxenhance/pkg/storage"
	"nxenhance/pkg/version"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	configPath string
	profile    string
	yes        bool

	cfg   *config.Config
	log   *slog.Logger
	level *slog.LevelVar

	in  io.Reader
	out io.Writer
	err io.Writer

	// session authenticates API requests when set. watch and api.use_browser_session fill it.
	session nextdns.SessionSource
	closers []func() error
}

// NewRootCommand builds the command tree reading prompts from in and writing results to
// out and diagnostics to errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, err: errOut}

	root := &cobra.Command{
		Use:           "nxenhance",
		Short:         "Enhance the NextDNS web UI and run bulk list operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default $NXENHANCE_CONFIG or "+config.DefaultPath()+")")
	flags.StringVarP(&a.profile, "profile", "p", "", "NextDNS profile id (overrides api.profile)")
	flags.BoolVarP(&a.yes, "yes", "y", false, "answer yes to every confirmation")

	root.AddCommand(
		a.watchCommand(),
		a.addCommand(),
		a.deleteCommand(),
		a.clearCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.tldCommand(),
		a.hiddenCommand(),
		a.describeCommand(),
		a.versionCommand(),
	)
	return root
}

// Execute runs the command line with the process streams and returns the exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, bulk.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			return 2
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func (a *app) setup() error {
	cfg, err := config.Setup(a.configPath)
	if err != nil {
		return err
	}
	if a.profile != "" {
		cfg.API.Profile = a.profile
	}
	a.cfg = cfg
	a.log, a.level = logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	return nil
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "nxenhance", version.String())
		},
	}
}

// newClient builds an API client from the configuration. profile may be empty for
// clients that pick their profile later.
func (a *app) newClient(profile string) *nextdns.Client {
	api, retry := a.cfg.API, a.cfg.Retry
	return nextdns.New(nextdns.Options{
		BaseURL: api.BaseURL,
		Profile: profile,
		APIKey:  api.APIKey,
		Origin:  api.Origin,
		Timeout: api.Timeout,
		Policy: nextdns.Policy{
			BaseDelay:   retry.BaseDelay,
			MaxJitter:   retry.MaxJitter,
			MaxAttempts: retry.MaxAttempts,
		},
		Session: a.session,
		Logger:  a.log,
	})
}

// profileClient returns a client for the configured profile, which must be set. With
// api.use_browser_session the cookies of the attached tab authenticate the requests.
func (a *app) profileClient(ctx context.Context) (*nextdns.Client, error) {
	if a.cfg.API.Profile == "" {
		return nil, errors.New("no profile: set api.profile or pass --profile")
	}
	if a.cfg.API.UseBrowserSession && a.session == nil {
		host, err := browser.Attach(ctx, browser.Options{
			DevToolsURL: a.cfg.Browser.DevToolsURL,
			TargetMatch: a.cfg.Browser.Target,
			Logger:      a.log,
		})
		if err != nil {
			return nil, fmt.Errorf("attach browser session: %w", err)
		}
		a.session = host
		a.closers = append(a.closers, host.Close)
	}
	if a.cfg.API.APIKey == "" && a.session == nil {
		return nil, errors.New("no credentials: set api.api_key or api.use_browser_session")
	}
	return a.newClient(a.cfg.API.Profile), nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("cleanup failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) bulkOptions() bulk.Options {
	b := a.cfg.Bulk
	return bulk.Options{
		Logger:       a.log,
		ItemDelay:    b.ItemDelay,
		DeleteLimit:  b.DeleteLimit,
		ClearPolls:   b.ClearPolls,
		PollInterval: b.PollInterval,
	}
}

func (a *app) orchestrator(client *nextdns.Client) *bulk.Orchestrator {
	opts := a.bulkOptions()
	opts.Client = client
	opts.Progress = &lineProgress{w: a.err}
	if a.yes {
		opts.Prompt = bulk.Unattended{Logger: a.log}
	} else {
		opts.Prompt = newTerminalPrompt(a.in, a.err)
	}
	return bulk.New(opts)
}

// openStore opens the settings database, in the user config directory unless
// settings.database names a file.
func (a *app) openStore(ctx context.Context) (*settings.Store, func(), error) {
	path := a.cfg.Settings.Database
	if path == "" {
		path = filepath.Join(filepath.Dir(config.DefaultPath()), "settings.db")
	}
	db, err := storage.OpenSQLite(path, a.log)
	if err != nil {
		return nil, nil, err
	}
	store, err := settings.Open(ctx, db, a.cfg.Settings.Key, a.log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			a.log.Warn("failed to close settings database", "error", err)
		}
	}
	return store, closeDB, nil
}

// terminalPrompt asks on the terminal. Anything but y or yes declines.
type terminalPrompt struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompt(in io.Reader, out io.Writer) *terminalPrompt {
	return &terminalPrompt{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompt) Confirm(_ context.Context, message string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s [y/N] ", message)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *terminalPrompt) Alert(_ context.Context, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, message)
	return err
}

// lineProgress prints progress messages one per line.
type lineProgress struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *lineProgress) Start(message string)  { p.print(message) }
func (p *lineProgress) Update(message string) { p.print(message) }
func (p *lineProgress) Done()                 {}

func (p *lineProgress) print(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, message)
}
