package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"romimport/internal/queue"
	"romimport/internal/statusbus"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "import [paths...]",
		Short: "Queue files or directories for import",
		Long: "Queue files or directories for import. With --wait the queue is processed\n" +
			"until it drains; without paths --wait processes whatever is already queued.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !wait {
				return errors.New("at least one path is required (or use --wait to process the existing queue)")
			}
			return ctx.withRuntime(cmd, needQueue|needLibrary, func(rt *runtime) error {
				out := cmd.OutOrStdout()
				color := shouldColorize(out)

				var sub *statusbus.Subscription
				var printed sync.WaitGroup
				if wait {
					sub = rt.manager.Subscribe(statusbus.DefaultBuffer * 4)
					printed.Add(1)
					go func() {
						defer printed.Done()
						for change := range sub.C {
							printChange(out, change, color)
						}
					}()
				}
				stopPrinter := func() {
					if sub != nil {
						sub.Close()
						printed.Wait()
						sub = nil
					}
				}
				defer stopPrinter()

				items, addErr := rt.manager.AddMany(cmd.Context(), args)
				if addErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", addErr)
					if len(items) == 0 && len(args) > 0 {
						return addErr
					}
				}
				if !wait {
					fmt.Fprintf(out, "Queued %d item(s)\n", len(items))
					return nil
				}

				if err := rt.manager.Start(cmd.Context()); err != nil {
					return err
				}
				if err := rt.manager.WaitIdle(cmd.Context()); err != nil {
					return err
				}
				rt.manager.Stop()
				stopPrinter()

				all, err := rt.manager.Items(cmd.Context())
				if err != nil {
					return err
				}
				if len(all) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				printTable(out, queueHeaders, buildQueueRows(all, color, nil), queueAligns)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Process the queue and wait until it is idle")
	return cmd
}

func printChange(out io.Writer, change statusbus.Change, color bool) {
	name := filepath.Base(change.URL)
	if change.From == "" {
		fmt.Fprintf(out, "%-10s #%d %s\n", "added", change.ItemID, name)
		return
	}
	if change.To == queue.StatusProcessing {
		fmt.Fprintf(out, "%-10s #%d %s\n", statusLabel(change.To, color), change.ItemID, name)
		return
	}
	fmt.Fprintf(out, "%-10s #%d %s: %s\n", statusLabel(change.To, color), change.ItemID, name, change.Message)
}
