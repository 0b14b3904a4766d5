package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"romimport/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the import queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueChooseCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items in processing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				items, err := rt.manager.Items(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := buildQueueRows(items, shouldColorize(out), statusFilter(listStatuses))
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				printTable(out, queueHeaders, rows, queueAligns)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Only show items with these statuses")
	return cmd
}

// statusFilter keeps every item when statuses is empty. Filtered rows keep
// their position in the full queue so `queue remove` indices stay valid.
func statusFilter(statuses []string) func(*queue.Item) bool {
	if len(statuses) == 0 {
		return nil
	}
	want := make(map[queue.Status]struct{}, len(statuses))
	for _, status := range statuses {
		want[queue.Status(strings.ToLower(strings.TrimSpace(status)))] = struct{}{}
	}
	return func(item *queue.Item) bool {
		_, ok := want[item.Status]
		return ok
	}
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				health, err := rt.store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if health.Total == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := [][]string{
					{string(queue.StatusQueued), strconv.Itoa(health.Queued)},
					{string(queue.StatusProcessing), strconv.Itoa(health.Processing)},
					{string(queue.StatusSuccess), strconv.Itoa(health.Success)},
					{string(queue.StatusFailure), strconv.Itoa(health.Failure)},
					{string(queue.StatusConflict), strconv.Itoa(health.Conflict)},
					{string(queue.StatusPartial), strconv.Itoa(health.Partial)},
					{"total", strconv.Itoa(health.Total)},
				}
				printTable(out, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove successful items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				n, err := rt.manager.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed item(s)\n", n)
				return nil
			})
		},
	}
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				n, err := rt.manager.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed item(s)\n", n)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue failed items (all of them when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				n, err := rt.manager.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d item(s)\n", n)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <index...>",
		Short: "Remove items by their position in `queue list`",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices := make([]int, 0, len(args))
			for _, arg := range args {
				index, err := strconv.Atoi(strings.TrimSpace(arg))
				if err != nil {
					return fmt.Errorf("invalid index %q", arg)
				}
				indices = append(indices, index)
			}
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				if err := rt.manager.Remove(cmd.Context(), indices...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", len(indices))
				return nil
			})
		},
	}
}

func newQueueChooseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "choose <id> <system>",
		Short: "Settle a system conflict and requeue the item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				if err := rt.manager.ChooseSystem(cmd.Context(), ids[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d requeued as %s\n", ids[0], strings.TrimSpace(args[1]))
				return nil
			})
		},
	}
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the status changes of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, needQueue, func(rt *runtime) error {
				history, err := rt.manager.History(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(history) == 0 {
					fmt.Fprintf(out, "No history for item %d\n", ids[0])
					return nil
				}
				color := shouldColorize(out)
				rows := make([][]string, 0, len(history))
				for _, tr := range history {
					from := string(tr.From)
					if from == "" {
						from = "-"
					}
					rows = append(rows, []string{
						tr.At.Local().Format(time.DateTime),
						from,
						statusLabel(tr.To, color),
						tr.Message,
					})
				}
				printTable(out, []string{"At", "From", "To", "Message"}, rows, nil)
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
