package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nxenhance/pkg/bulk"
	"nxenhance/pkg/settings"
)

func (a *app) hiddenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hidden",
		Short: "Inspect or reset domains hidden from the logs page",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print hidden domains",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, closeStore, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer closeStore()
				for _, name := range store.Snapshot().HiddenDomains {
					fmt.Fprintln(a.out, name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Show every hidden domain again",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				store, closeStore, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer closeStore()

				count := store.HiddenCount()
				if count == 0 {
					fmt.Fprintln(a.out, "no hidden domains")
					return nil
				}
				if !a.yes {
					ok, err := newTerminalPrompt(a.in, a.err).Confirm(ctx, fmt.Sprintf("Show %d hidden domains again?", count))
					if err != nil {
						return err
					}
					if !ok {
						return bulk.ErrCancelled
					}
				}
				if err := store.ResetHidden(ctx); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "reset %d hidden domains\n", count)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) describeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <logs|allowlist|denylist> <domain> [text...]",
		Short: "Set or clear the note shown next to a domain",
		Long:  "Store a note for a domain on the logs, allowlist or denylist page. Without text the note is printed; an empty text (\"\") deletes it.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			scope, err := parseScope(args[0])
			if err != nil {
				return err
			}
			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if len(args) == 2 {
				fmt.Fprintln(a.out, store.Description(scope, args[1]))
				return nil
			}
			return store.SetDescription(ctx, scope, args[1], strings.Join(args[2:], " "))
		},
	}
}

func parseScope(name string) (settings.Scope, error) {
	switch strings.ToLower(name) {
	case "logs":
		return settings.ScopeLogs, nil
	case "allowlist", "allow":
		return settings.ScopeAllowlist, nil
	case "denylist", "deny":
		return settings.ScopeDenylist, nil
	}
	return "", fmt.Errorf("unknown scope %q (must be logs, allowlist or denylist)", name)
}
