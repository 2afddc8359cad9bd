package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func newUploadCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <transcript>",
		Short: "Upload a transcript",
		Long: `Upload a new transcript, with optional media, or with --update a new version
of a transcript already in the store. The server's processing task is
recorded in the local ledger and waited for unless --no-wait is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			media, _ := cmd.Flags().GetStringArray("media")
			track, _ := cmd.Flags().GetString("track")
			corpus, _ := cmd.Flags().GetString("corpus")
			episode, _ := cmd.Flags().GetString("episode")
			transcriptType, _ := cmd.Flags().GetString("type")
			update, _ := cmd.Flags().GetBool("update")
			noGenerate, _ := cmd.Flags().GetBool("no-generate")
			noWait, _ := cmd.Flags().GetBool("no-wait")
			maxWait, _ := cmd.Flags().GetDuration("max-wait")

			transcript := args[0]
			if update && (len(media) > 0 || corpus != "" || episode != "") {
				return fmt.Errorf("--media, --corpus, and --episode cannot be used with --update")
			}

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var threadID string
			if update {
				threadID, err = c.UpdateTranscript(ctx, transcript, !noGenerate)
			} else {
				threadID, err = c.NewTranscript(ctx, transcript, media, track, transcriptType, corpus, episode)
			}
			if err != nil {
				return err
			}
			if threadID == "" {
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Uploaded %s", filepath.Base(transcript)), opts.jsonOutput)
				return nil
			}

			t := opts.trackTask(ctx, c.BaseURL(), ledger.KindUpload, threadID, filepath.Base(transcript))
			defer t.close()

			if noWait {
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
	cmd.Flags().StringArray("media", nil, "Media file to upload with the transcript (repeatable)")
	cmd.Flags().String("track", "", "Media track suffix, e.g. _face")
	cmd.Flags().String("corpus", "", "Corpus for a new transcript")
	cmd.Flags().String("episode", "", "Episode for a new transcript")
	cmd.Flags().String("type", "", "Transcript type for a new transcript")
	cmd.Flags().Bool("update", false, "Update a transcript already in the store")
	cmd.Flags().Bool("no-generate", false, "With --update, don't regenerate automatic layers")
	cmd.Flags().Bool("no-wait", false, "Print the thread ID and return without waiting")
	cmd.Flags().Duration("max-wait", 0, "Give up waiting after this long (0 to wait indefinitely)")
	return cmd
}
