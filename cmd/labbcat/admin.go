package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func newAdminCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer the store (requires the admin role)",
	}

	cmd.AddCommand(
		adminGroup("users", "Manage users", newAdminListCmd(opts, "List users",
			(*labbcat.Client).ReadUsers,
			[]string{"User", "Email", "Reset Password", "Roles"},
			func(u *labbcat.User) []string {
				return []string{u.User, u.Email, strconv.FormatBool(u.ResetPassword), strings.Join(u.Roles, ", ")}
			})),
		adminGroup("corpora", "Manage corpora", newAdminListCmd(opts, "List corpora",
			(*labbcat.Client).ReadCorpora,
			[]string{"ID", "Name", "Language", "Description"},
			func(c *labbcat.Corpus) []string {
				return []string{strconv.Itoa(c.ID), c.Name, c.Language, c.Description}
			})),
		adminGroup("projects", "Manage projects", newAdminListCmd(opts, "List projects",
			(*labbcat.Client).ReadProjects,
			[]string{"ID", "Project", "Description"},
			func(p *labbcat.Project) []string {
				return []string{strconv.Itoa(p.ID), p.Name, p.Description}
			})),
		adminGroup("tracks", "Manage media tracks", newAdminListCmd(opts, "List media tracks",
			(*labbcat.Client).ReadMediaTracks,
			[]string{"Suffix", "Description", "Display Order"},
			func(t *labbcat.MediaTrack) []string {
				return []string{t.Suffix, t.Description, strconv.Itoa(t.DisplayOrder)}
			})),
		adminGroup("roles", "Manage roles", newAdminListCmd(opts, "List roles",
			(*labbcat.Client).ReadRoles,
			[]string{"Role", "Description"},
			func(r *labbcat.Role) []string {
				return []string{r.ID, r.Description}
			})),
		newAdminGenerateCmd(opts),
	)
	return cmd
}

func adminGroup(use, short string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	cmd.AddCommand(subcommands...)
	return cmd
}

// newAdminListCmd builds a "list" command for one kind of admin record.
func newAdminListCmd[T any](
	opts *globalOptions,
	short string,
	read func(*labbcat.Client, context.Context, *labbcat.Page) ([]*T, error),
	header []string,
	row func(*T) []string,
) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pageLength, _ := cmd.Flags().GetInt("page-length")
			pageNumber, _ := cmd.Flags().GetInt("page")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			records, err := read(c, cmd.Context(), pageOf(pageLength, pageNumber))
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				if records == nil {
					records = []*T{}
				}
				printJSON(cmd.OutOrStdout(), records)
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, row(r))
			}
			printTable(cmd.OutOrStdout(), header, rows)
			return nil
		},
	}
	addPageFlags(cmd)
	return cmd
}

func newAdminGenerateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <layer>",
		Short: "Regenerate an automatic annotation layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noWait, _ := cmd.Flags().GetBool("no-wait")
			maxWait, _ := cmd.Flags().GetDuration("max-wait")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			threadID, err := c.GenerateLayer(ctx, args[0])
			if err != nil {
				return err
			}
			t := opts.trackTask(ctx, c.BaseURL(), ledger.KindGenerateLayer, threadID, args[0])
			defer t.close()

			if noWait || threadID == "" {
				printThread(cmd, threadID, opts.jsonOutput)
				return nil
			}
			status, err := c.WaitForTask(ctx, threadID, maxWait, labbcat.WithProgress(opts.progressLogger(ctx, t)))
			if err != nil {
				return err
			}
			printTaskStatus(cmd.OutOrStdout(), status, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().Bool("no-wait", false, "Print the thread ID and return without waiting")
	cmd.Flags().Duration("max-wait", 0, "Give up waiting after this long (0 to wait indefinitely)")
	return cmd
}
