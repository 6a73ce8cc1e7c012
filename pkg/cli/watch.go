package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"nxenhance/pkg/browser"
	"nxenhance/pkg/observe"
)

func (a *app) watchCommand() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach to a browser tab and enhance the NextDNS web UI until interrupted",
		Long: "Attach to a Chromium tab started with --remote-debugging-port and keep its " +
			"NextDNS pages decorated. SIGHUP reloads the tab; SIGINT or SIGTERM stops.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bc := a.cfg.Browser
			if target == "" {
				target = bc.Target
			}

			host, err := browser.Attach(ctx, browser.Options{
				DevToolsURL: bc.DevToolsURL,
				TargetMatch: target,
				Logger:      a.log,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := host.Close(); err != nil {
					a.log.Warn("failed to close browser connection", "error", err)
				}
			}()

			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			// Page requests carry the tab's session cookies next to any configured API key.
			a.session = host
			engine := observe.New(observe.Options{
				Host:         host,
				Client:       a.newClient(a.cfg.API.Profile),
				Settings:     store,
				Logger:       a.log,
				Level:        a.level,
				Bulk:         a.bulkOptions(),
				SyncInterval: bc.SyncInterval,
				ScanInterval: bc.ScanInterval,
				MenuInterval: bc.MenuInterval,
				RestoreDelay: bc.RestoreDelay,
			})

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go a.reloadOnHangup(ctx, host)

			err = engine.Run(ctx)
			engine.Wait()
			if errors.Is(err, context.Canceled) {
				a.log.Info("watch stopped")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "select the first tab whose URL contains this (default browser.target)")
	return cmd
}

// reloadOnHangup reloads the tab on SIGHUP; the engine re-reads the page on its next pass.
func (a *app) reloadOnHangup(ctx context.Context, host *browser.Host) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigChan:
			a.log.Info("received SIGHUP signal, reloading page")
			if err := host.Reload(ctx); err != nil {
				a.log.Error("failed to reload page", "error", err)
			}
		}
	}
}
