package cli

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
)

func (a *app) exportCommand() *cobra.Command {
	var name, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the profile configuration to <name>-<profile>-Export.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				name = a.cfg.Export.Name
			}
			if dir == "" {
				dir = a.cfg.Export.Dir
			}
			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			file, err := a.orchestrator(client).Export(cmd.Context(), name, client.Profile())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create export directory: %w", err)
			}
			path := filepath.Join(dir, file.Name)
			if err := os.WriteFile(path, file.Data, 0o600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintln(a.out, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "configuration name used in the file name (default export.name)")
	cmd.Flags().StringVarP(&dir, "out", "o", "", "directory to write the export to (default export.dir)")
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Apply an exported configuration to the profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			client, err := a.profileClient(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.orchestrator(client).Import(cmd.Context(), data)
			if err != nil {
				return err
			}

			patched := slices.Sorted(maps.Keys(report.Patched))
			for _, res := range patched {
				status := "ok"
				if err := report.Patched[res]; err != nil {
					status = err.Error()
				}
				fmt.Fprintf(a.out, "%s: %s\n", res, status)
			}
			for _, res := range slices.Sorted(maps.Keys(report.Lists)) {
				r := report.Lists[res]
				fmt.Fprintf(a.out, "%s: %d/%d imported\n", res, r.Imported, r.Total)
			}

			if report.Failed() {
				return fmt.Errorf("import finished with errors")
			}
			return nil
		},
	}
}
