package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

func newSearchCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the corpus for a pattern",
		Long: `Search for tokens matching a pattern, wait for the search to finish, and
print the matches.

Conditions on the first token are given with --layer; each --column adds a
following token, with comma-separated conditions:

  labbcat search --layer orthography=knox
  labbcat search --layer orthography=the --column orthography=knox,pos=N.*

The search is recorded in the local task ledger; with --no-wait its thread
ID is printed and the matches can be fetched later with "task wait".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layers, _ := cmd.Flags().GetStringArray("layer")
			columns, _ := cmd.Flags().GetStringArray("column")
			rawPattern, _ := cmd.Flags().GetString("pattern-json")
			participants, _ := cmd.Flags().GetStringSlice("participant")
			transcriptTypes, _ := cmd.Flags().GetStringSlice("transcript-type")
			mainOnly, _ := cmd.Flags().GetBool("main")
			alignedOnly, _ := cmd.Flags().GetBool("aligned")
			maxMatches, _ := cmd.Flags().GetInt("max")
			wordsContext, _ := cmd.Flags().GetInt("context")
			noWait, _ := cmd.Flags().GetBool("no-wait")
			keep, _ := cmd.Flags().GetBool("keep")
			maxWait, _ := cmd.Flags().GetDuration("max-wait")

			pattern, err := buildPattern(layers, columns, rawPattern)
			if err != nil {
				return err
			}

			var searchOpts []labbcat.SearchOption
			if len(participants) > 0 {
				searchOpts = append(searchOpts, labbcat.WithParticipants(participants...))
			}
			if len(transcriptTypes) > 0 {
				searchOpts = append(searchOpts, labbcat.WithTranscriptTypes(transcriptTypes...))
			}
			if mainOnly {
				searchOpts = append(searchOpts, labbcat.WithMainParticipantOnly())
			}
			if alignedOnly {
				searchOpts = append(searchOpts, labbcat.WithAlignedWordsOnly())
			}

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			threadID, err := c.Search(ctx, pattern, searchOpts...)
			if err != nil {
				return err
			}
			t := opts.trackTask(ctx, c.BaseURL(), ledger.KindSearch, threadID, pattern.String())
			defer t.close()

			if noWait {
				printThread(cmd, threadID, opts.jsonOutput)
				return nil
			}

			// Released however the wait ends, except when the search is
			// left running for "labbcat task wait".
			release := !keep
			defer func() {
				if release {
					releaseTask(ctx, opts, c, t, threadID)
				}
			}()

			status, err := c.WaitForTask(ctx, threadID, maxWait, labbcat.WithProgress(opts.progressLogger(ctx, t)))
			if err != nil {
				return err
			}
			if status.Running {
				release = false
				return fmt.Errorf("search %s still running after %s; try \"labbcat task wait %s\"", threadID, maxWait, threadID)
			}

			matches, err := c.Matches(ctx, threadID, wordsContext, pageOf(maxMatches, 0))
			if err != nil {
				return err
			}

			printMatches(cmd.OutOrStdout(), matches, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().StringArrayP("layer", "l", nil, "Condition on the first token, as layer=regex (repeatable)")
	cmd.Flags().StringArray("column", nil, "Conditions on a following token, as layer=regex[,layer=regex] (repeatable)")
	cmd.Flags().String("pattern-json", "", "Search pattern as JSON, instead of --layer and --column")
	cmd.Flags().StringSlice("participant", nil, "Only search these participants")
	cmd.Flags().StringSlice("transcript-type", nil, "Only search transcripts of these types")
	cmd.Flags().Bool("main", false, "Only match main participants")
	cmd.Flags().Bool("aligned", false, "Only match aligned words")
	cmd.Flags().Int("max", 0, "Maximum number of matches (0 for all)")
	cmd.Flags().Int("context", 1, "Words of context before and after each match")
	cmd.Flags().Bool("no-wait", false, "Print the thread ID and return without waiting")
	cmd.Flags().Bool("keep", false, "Don't release the search task when done")
	cmd.Flags().Duration("max-wait", 0, "Give up waiting after this long (0 to wait indefinitely)")
	return cmd
}

// buildPattern builds a search pattern from command line conditions.
func buildPattern(layers, columns []string, rawJSON string) (*labbcat.Pattern, error) {
	if rawJSON != "" {
		if len(layers) > 0 || len(columns) > 0 {
			return nil, fmt.Errorf("--pattern-json cannot be combined with --layer or --column")
		}
		return labbcat.RawPattern([]byte(rawJSON)), nil
	}
	if len(layers) == 0 {
		return nil, labbcat.ErrNoPattern
	}

	builder := labbcat.NewPatternBuilder()
	for _, condition := range layers {
		layerID, regex, err := parseLayerCondition(condition)
		if err != nil {
			return nil, err
		}
		builder.AddMatchLayer(layerID, regex)
	}
	for _, column := range columns {
		builder.AddColumn()
		for _, condition := range strings.Split(column, ",") {
			layerID, regex, err := parseLayerCondition(condition)
			if err != nil {
				return nil, err
			}
			builder.AddMatchLayer(layerID, regex)
		}
	}
	return builder.Build(), nil
}

// releaseTask frees a task on the server, logging any failure. It runs even
// when ctx has been cancelled.
func releaseTask(ctx context.Context, opts *globalOptions, c *labbcat.Client, t *tracker, threadID string) {
	ctx = context.WithoutCancel(ctx)
	if err := c.ReleaseTask(ctx, threadID); err != nil {
		opts.logger.Warn().Err(err).Str("threadId", threadID).Msg("failed to release task")
		return
	}
	t.released(ctx)
}

func printThread(cmd *cobra.Command, threadID string, jsonOutput bool) {
	if jsonOutput {
		printJSON(cmd.OutOrStdout(), map[string]string{"thread_id": threadID})
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), threadID)
}
