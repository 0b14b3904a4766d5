package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"romimport/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect the imported library",
	}
	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibrarySummaryCommand(ctx))
	libraryCmd.AddCommand(newLibraryBIOSCommand(ctx))
	return libraryCmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var system string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List imported games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needLibrary, func(rt *runtime) error {
				entries, err := rt.library.List(cmd.Context(), strings.TrimSpace(system))
				if err != nil {
					return err
				}
				if jsonOutput {
					if entries == nil {
						entries = []library.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.System,
						entry.Title,
						entry.Region,
						entry.MD5,
						libraryRelative(rt.cfg.Paths.LibraryDir, entry.Path),
					})
				}
				printTable(out, []string{"System", "Title", "Region", "MD5", "Path"}, rows, nil)
				fmt.Fprintf(out, "%d game(s)\n", len(entries))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&system, "system", "s", "", "Only games of this system")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newLibrarySummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show game counts per system",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needLibrary, func(rt *runtime) error {
				counts, err := rt.library.CountBySystem(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(counts) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				systems := make([]string, 0, len(counts))
				for system := range counts {
					systems = append(systems, system)
				}
				sort.Strings(systems)
				rows := make([][]string, 0, len(systems))
				total := 0
				for _, system := range systems {
					rows = append(rows, []string{system, strconv.Itoa(counts[system])})
					total += counts[system]
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				printTable(out, []string{"System", "Games"}, rows, []columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}

func newLibraryBIOSCommand(ctx *commandContext) *cobra.Command {
	var system string

	cmd := &cobra.Command{
		Use:   "bios",
		Short: "List imported BIOS files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needLibrary, func(rt *runtime) error {
				files, err := rt.library.ListBIOS(cmd.Context(), strings.TrimSpace(system))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintln(out, "No BIOS files imported")
					return nil
				}
				rows := make([][]string, 0, len(files))
				for _, bios := range files {
					rows = append(rows, []string{bios.System, bios.Name, bios.MD5, libraryRelative(rt.cfg.Paths.LibraryDir, bios.Path)})
				}
				printTable(out, []string{"System", "File", "MD5", "Path"}, rows, nil)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&system, "system", "s", "", "Only BIOS files of this system")
	return cmd
}

func libraryRelative(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
