package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete transcripts or participants",
	}

	transcriptCmd := &cobra.Command{
		Use:   "transcript <id>...",
		Short: "Delete transcripts and their media",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := c.DeleteTranscript(cmd.Context(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted transcript %s", id), opts.jsonOutput)
			}
			return nil
		},
	}

	participantCmd := &cobra.Command{
		Use:   "participant <id>...",
		Short: "Delete participants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := c.DeleteParticipant(cmd.Context(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Deleted participant %s", id), opts.jsonOutput)
			}
			return nil
		},
	}

	cmd.AddCommand(transcriptCmd, participantCmd)
	return cmd
}
