package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func newTaskCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage server tasks",
		Long: `Inspect and control long-running server tasks, such as searches, uploads,
and layer generation, and the local ledger of tasks started from here.`,
	}

	cmd.AddCommand(
		newTaskStatusCmd(opts),
		newTaskWaitCmd(opts),
		newTaskCancelCmd(opts),
		newTaskReleaseCmd(opts),
		newTaskListCmd(opts),
		newTaskHistoryCmd(opts),
		newTaskForgetCmd(opts),
	)
	return cmd
}

func newTaskStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <thread>",
		Short: "Show the status of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			status, err := c.TaskStatus(ctx, args[0])
			if err != nil {
				return err
			}
			t := opts.findTask(ctx, c.BaseURL(), args[0])
			defer t.close()
			t.update(ctx, status)

			printTaskStatus(cmd.OutOrStdout(), status, opts.jsonOutput)
			return nil
		},
	}
}

func newTaskWaitCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <thread>",
		Short: "Wait for a task to finish",
		Long: `Wait for a task to finish and show its final status. For a search, the
matches are printed instead, and the task is released unless --keep is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxWait, _ := cmd.Flags().GetDuration("max-wait")
			interval, _ := cmd.Flags().GetDuration("interval")
			keep, _ := cmd.Flags().GetBool("keep")
			wordsContext, _ := cmd.Flags().GetInt("context")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			threadID := args[0]

			t := opts.findTask(ctx, c.BaseURL(), threadID)
			defer t.close()

			waitOpts := []labbcat.WaitOption{labbcat.WithProgress(opts.progressLogger(ctx, t))}
			if interval > 0 {
				waitOpts = append(waitOpts, labbcat.WithPollInterval(interval))
			}
			status, err := c.WaitForTask(ctx, threadID, maxWait, waitOpts...)
			if err != nil {
				return err
			}

			if !status.Running && t != nil && t.entry.Kind == ledger.KindSearch {
				matches, err := c.Matches(ctx, threadID, wordsContext, nil)
				if err != nil {
					return err
				}
				if !keep {
					releaseTask(ctx, opts, c, t, threadID)
				}
				printMatches(cmd.OutOrStdout(), matches, opts.jsonOutput)
				return nil
			}

			printTaskStatus(cmd.OutOrStdout(), status, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().Duration("max-wait", 0, "Give up waiting after this long (0 to wait indefinitely)")
	cmd.Flags().Duration("interval", 0, "Polling interval (default: as the server suggests)")
	cmd.Flags().Bool("keep", false, "Don't release a finished search")
	cmd.Flags().Int("context", 1, "Words of context for search matches")
	return cmd
}

func newTaskCancelCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <thread>",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.CancelTask(ctx, args[0]); err != nil {
				return err
			}

			t := opts.findTask(ctx, c.BaseURL(), args[0])
			defer t.close()
			t.cancelled(ctx)

			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Cancelled task %s", args[0]), opts.jsonOutput)
			return nil
		},
	}
}

func newTaskReleaseCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "release <thread>",
		Short: "Release a finished task's server resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := c.ReleaseTask(ctx, args[0]); err != nil {
				return err
			}

			t := opts.findTask(ctx, c.BaseURL(), args[0])
			defer t.close()
			t.released(ctx)

			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Released task %s", args[0]), opts.jsonOutput)
			return nil
		},
	}
}

func newTaskListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the server's tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			tasks, err := c.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks, opts.jsonOutput)
			return nil
		},
	}
}

func newTaskHistoryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List tasks started from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			serverURL := ""
			if !all {
				c, err := opts.getClient(cmd)
				if err != nil {
					return err
				}
				serverURL = c.BaseURL()
			}

			l, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.List(cmd.Context(), serverURL)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries, time.Now(), opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Include tasks on every server")
	return cmd
}

func newTaskForgetCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget [thread...]",
		Short: "Remove tasks from the local ledger",
		Long: `Remove the given tasks from the local ledger, or with --older-than, every
finished task last updated before then. Tasks on the server are not affected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if len(args) == 0 && olderThan <= 0 {
				return errors.New("give thread IDs or --older-than")
			}

			l, err := opts.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()
			ctx := cmd.Context()

			if olderThan > 0 {
				n, err := l.Prune(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Forgot %d tasks", n), opts.jsonOutput)
				return nil
			}

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			serverURL := c.BaseURL()
			err = l.WithTx(ctx, func(entries ledger.Entries) error {
				return forgetThreads(ctx, entries, serverURL, args)
			})
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Forgot %d tasks", len(args)), opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 0, "Forget finished tasks older than this, e.g. 720h")
	return cmd
}

// forgetThreads deletes the ledger entries of the given threads. It fails,
// deleting nothing, if any thread is not in the ledger.
func forgetThreads(ctx context.Context, entries ledger.Entries, serverURL string, threadIDs []string) error {
	for _, threadID := range threadIDs {
		entry, err := entries.FindByThread(ctx, serverURL, threadID)
		if err != nil {
			return fmt.Errorf("task %s: %w", threadID, err)
		}
		if err := entries.Delete(ctx, entry.ID); err != nil {
			return err
		}
	}
	return nil
}
