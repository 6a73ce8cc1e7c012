package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"nxenhance/pkg/nextdns"
)

func (a *app) tldCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tld",
		Short: "Manage blocked top-level domains",
	}
	cmd.AddCommand(a.tldBlockCommand(), a.tldRemoveAllCommand())
	return cmd
}

func (a *app) tldBlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "block <tld...>",
		Short: "Block top-level domains",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			blocker := nextdns.NewSuffixBlocker(client, a.log)
			for _, tld := range args {
				ok, err := blocker.Add(cmd.Context(), tld)
				if err != nil {
					return fmt.Errorf("block %s: %w", tld, err)
				}
				if !blocker.Available() {
					return fmt.Errorf("blocking top-level domains is not supported by this API")
				}
				if ok {
					fmt.Fprintf(a.out, "blocked %s\n", tld)
				} else {
					fmt.Fprintf(a.out, "skipped %q\n", tld)
				}
			}
			return nil
		},
	}
}

func (a *app) tldRemoveAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-all",
		Short: "Unblock every top-level domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			blocker := nextdns.NewSuffixBlocker(client, a.log)
			if err := a.orchestrator(client).RemoveAllSuffixes(cmd.Context(), blocker); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "all top-level domains unblocked")
			return nil
		},
	}
}
