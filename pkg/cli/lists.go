package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"nxenhance/pkg/bulk"
	"nxenhance/pkg/domain"
	"nxenhance/pkg/nextdns"
)

func (a *app) addCommand() *cobra.Command {
	var from, source string
	cmd := &cobra.Command{
		Use:   "add <denylist|allowlist> [domain...]",
		Short: "Add domains to a list, skipping those already present",
		Long: "Add domains given as arguments, read from --from (a file, a URL or - for stdin), " +
			"or from a [lists.<name>] source named by --source.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := nextdns.ParseList(args[0])
			if err != nil {
				return err
			}
			names, err := a.collectDomains(ctx, args[1:], from, source)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				return fmt.Errorf("no domains to add")
			}

			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			existing, err := listEntries(ctx, client, list)
			if err != nil {
				return err
			}
			job, err := a.orchestrator(client).BulkAdd(ctx, list, names, existing)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "added %d, skipped %d, failed %d\n", job.Succeeded, job.Skipped, len(job.Failed))
			return job.Err()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "read domains from a file, URL or - for stdin")
	cmd.Flags().StringVar(&source, "source", "", "read domains from a configured list source")
	cmd.MarkFlagsMutuallyExclusive("from", "source")
	return cmd
}

// collectDomains merges argument domains with those of --from or --source. Argument
// domains are normalized and invalid ones dropped with a warning; loaded lists are already
// validated by the parser.
func (a *app) collectDomains(ctx context.Context, args []string, from, source string) ([]string, error) {
	seen := domain.NewSet()
	var names []string
	push := func(name string) {
		if seen.Add(name) {
			names = append(names, name)
		}
	}

	for _, arg := range args {
		name := domain.Normalize(arg)
		if !domain.Valid(name) {
			a.log.Warn("skipping invalid domain", "domain", arg)
			continue
		}
		push(name)
	}

	var src *domain.Source
	switch {
	case from == "-":
		loaded, err := a.readStdin()
		if err != nil {
			return nil, err
		}
		for _, name := range loaded {
			push(name)
		}
	case from != "":
		src = &domain.Source{ID: from, Location: from}
	case source != "":
		cfg, ok := a.cfg.Lists[strings.ToLower(source)]
		if !ok {
			return nil, fmt.Errorf("unknown list source %q", source)
		}
		s := cfg.Source(source)
		src = &s
	}
	if src != nil {
		loaded, stats, err := domain.LoadList(ctx, *src, a.log, a.cfg.Logging.ParseErrorLimit)
		if err != nil {
			return nil, err
		}
		a.log.Info("loaded domain list", "source", src.ID, "domains", stats.Domains, "invalid", stats.Invalid)
		for _, name := range loaded {
			push(name)
		}
	}
	return names, nil
}

// readStdin parses domains from the command input rather than the process stdin so
// tests can feed it.
func (a *app) readStdin() ([]string, error) {
	names, stats, err := domain.ParseList(a.in, domain.ParseOptions{
		ListID:     "stdin",
		Logger:     a.log,
		ErrorLimit: a.cfg.Logging.ParseErrorLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	a.log.Info("loaded domain list", "source", "stdin", "domains", stats.Domains, "invalid", stats.Invalid)
	return names, nil
}

// listEntries returns the ids currently in list.
func listEntries(ctx context.Context, client bulk.Requester, list nextdns.Resource) (*domain.Set, error) {
	body, err := client.Request(ctx, http.MethodGet, string(list), nil)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", list, err)
	}
	set := domain.NewSet()
	for _, id := range gjson.Get(body, "data.#.id").Array() {
		set.Add(id.String())
	}
	return set, nil
}

func (a *app) deleteCommand() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "delete <denylist|allowlist> [domain...]",
		Short: "Delete domains from a list, at most bulk.delete_limit per run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := nextdns.ParseList(args[0])
			if err != nil {
				return err
			}
			names := args[1:]
			if from != "" {
				extra, err := readLines(from, a.in)
				if err != nil {
					return err
				}
				names = append(names, extra...)
			}

			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			job, err := a.orchestrator(client).BulkDelete(ctx, list, names)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %d, failed %d\n", job.Succeeded, len(job.Failed))
			return job.Err()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "read domains from a file or - for stdin, one per line")
	return cmd
}

// readLines returns the non-empty lines of path, or of in when path is "-".
func readLines(path string, in io.Reader) ([]string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return bulk.SplitLines(string(data)), nil
}

func (a *app) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <denylist|allowlist>",
		Short: "Remove every entry of a list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := nextdns.ParseList(args[0])
			if err != nil {
				return err
			}
			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.orchestrator(client).ClearList(cmd.Context(), list)
			if err != nil {
				return err
			}
			if result.Verified {
				fmt.Fprintf(a.out, "%s cleared\n", list)
			} else {
				fmt.Fprintf(a.out, "%s clear sent, not yet empty after %d checks\n", list, result.Polls)
			}
			return nil
		},
	}
}
