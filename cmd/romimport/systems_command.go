package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"romimport/internal/registry"
)

func newSystemsCommand(ctx *commandContext) *cobra.Command {
	systemsCmd := &cobra.Command{
		Use:   "systems",
		Short: "Inspect the system registry",
	}
	systemsCmd.AddCommand(newSystemsListCommand(ctx))
	return systemsCmd
}

func newSystemsListCommand(ctx *commandContext) *cobra.Command {
	var extension string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known systems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, 0, func(rt *runtime) error {
				snap := rt.registry.Snapshot()
				systems := snap.All()
				if ext := strings.TrimSpace(extension); ext != "" {
					systems = nil
					for _, id := range snap.SystemsForExtension(ext) {
						if system, ok := snap.System(id); ok {
							systems = append(systems, system)
						}
					}
				}
				out := cmd.OutOrStdout()
				if len(systems) == 0 {
					fmt.Fprintln(out, "No systems found")
					return nil
				}
				printTable(out, []string{"ID", "Name", "Manufacturer", "Extensions", "BIOS", "Disc"}, buildSystemRows(systems), nil)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&extension, "extension", "e", "", "Only systems that claim this file extension")
	return cmd
}

func buildSystemRows(systems []registry.System) [][]string {
	rows := make([][]string, 0, len(systems))
	for _, system := range systems {
		rows = append(rows, []string{
			system.ID,
			system.Name,
			system.Manufacturer,
			strings.Join(system.Extensions, " "),
			yesNo(system.RequiresBIOS),
			yesNo(system.DiscBased),
		})
	}
	return rows
}
