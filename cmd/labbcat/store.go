package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newIDCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Show the store ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			id, err := c.ID(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"id": id, "version": c.ServerVersion()})
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (LaBB-CAT %s)\n", id, c.ServerVersion())
			return nil
		},
	}
}

func newInfoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the store's information document (HTML)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			info, err := c.Info(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]string{"info": info})
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func newLayersCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List annotation layers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idsOnly, _ := cmd.Flags().GetBool("ids")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			if idsOnly {
				ids, err := c.LayerIDs(cmd.Context())
				if err != nil {
					return err
				}
				printStrings(cmd.OutOrStdout(), ids, opts.jsonOutput)
				return nil
			}
			layers, err := c.Layers(cmd.Context())
			if err != nil {
				return err
			}
			printLayers(cmd.OutOrStdout(), layers, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().Bool("ids", false, "Only list layer IDs")
	return cmd
}

func newLayerCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "layer <id>",
		Short: "Show a layer definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			layer, err := c.Layer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLayer(cmd.OutOrStdout(), layer, opts.jsonOutput)
			return nil
		},
	}
}

func newCorporaCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "corpora",
		Short: "List corpus IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ids, err := c.CorpusIDs(cmd.Context())
			if err != nil {
				return err
			}
			printStrings(cmd.OutOrStdout(), ids, opts.jsonOutput)
			return nil
		},
	}
}

func newParticipantsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants [id]",
		Short: "List participants, or show one participant",
		Long: `List participant IDs, optionally filtered by an ID regular expression
(--match) or corpus (--corpus). Given an ID, show that participant with the
attributes named by --attribute.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			match, _ := cmd.Flags().GetString("match")
			corpus, _ := cmd.Flags().GetString("corpus")
			attributes, _ := cmd.Flags().GetStringSlice("attribute")
			count, _ := cmd.Flags().GetBool("count")
			pageLength, _ := cmd.Flags().GetInt("page-length")
			pageNumber, _ := cmd.Flags().GetInt("page")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				participant, err := c.Participant(ctx, args[0], attributes...)
				if err != nil {
					return err
				}
				if participant == nil {
					return fmt.Errorf("participant not found: %s", args[0])
				}
				printParticipant(out, participant, opts.jsonOutput)
				return nil
			}

			expression := filterExpression(match, corpus)
			if expression == "" {
				if count {
					return fmt.Errorf("--count needs --match or --corpus")
				}
				ids, err := c.ParticipantIDs(ctx)
				if err != nil {
					return err
				}
				printStrings(out, ids, opts.jsonOutput)
				return nil
			}

			if count {
				n, err := c.CountMatchingParticipantIDs(ctx, expression)
				if err != nil {
					return err
				}
				printCount(out, n, opts.jsonOutput)
				return nil
			}
			ids, err := c.MatchingParticipantIDs(ctx, expression, pageOf(pageLength, pageNumber))
			if err != nil {
				return err
			}
			printStrings(out, ids, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().String("match", "", "Regular expression participant IDs must match")
	cmd.Flags().String("corpus", "", "Only participants in this corpus")
	cmd.Flags().StringSlice("attribute", nil, "Attribute layer to show for a participant (repeatable)")
	cmd.Flags().Bool("count", false, "Only count matching participants")
	addPageFlags(cmd)
	return cmd
}

func newTranscriptsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcripts",
		Short: "List transcript IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			match, _ := cmd.Flags().GetString("match")
			corpus, _ := cmd.Flags().GetString("corpus")
			participant, _ := cmd.Flags().GetString("participant")
			order, _ := cmd.Flags().GetString("order")
			count, _ := cmd.Flags().GetBool("count")
			pageLength, _ := cmd.Flags().GetInt("page-length")
			pageNumber, _ := cmd.Flags().GetInt("page")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var ids []string
			switch {
			case participant != "":
				ids, err = c.TranscriptIDsWithParticipant(ctx, participant)
			case match != "" || count || order != "" || pageLength > 0:
				expression := filterExpression(match, corpus)
				if expression == "" {
					expression = "/.+/.test(id)"
				}
				if count {
					n, err := c.CountMatchingTranscriptIDs(ctx, expression)
					if err != nil {
						return err
					}
					printCount(out, n, opts.jsonOutput)
					return nil
				}
				ids, err = c.MatchingTranscriptIDs(ctx, expression, pageOf(pageLength, pageNumber), order)
			case corpus != "":
				ids, err = c.TranscriptIDsInCorpus(ctx, corpus)
			default:
				ids, err = c.TranscriptIDs(ctx)
			}
			if err != nil {
				return err
			}
			printStrings(out, ids, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().String("match", "", "Regular expression transcript IDs must match")
	cmd.Flags().String("corpus", "", "Only transcripts in this corpus")
	cmd.Flags().String("participant", "", "Only transcripts with this participant")
	cmd.Flags().String("order", "", "Sort order, e.g. \"id DESC\"")
	cmd.Flags().Bool("count", false, "Only count matching transcripts")
	addPageFlags(cmd)
	return cmd
}

func newAnnotationsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotations",
		Short: "Count or list the annotations of a transcript",
	}

	countCmd := &cobra.Command{
		Use:   "count <transcript> <layer>",
		Short: "Count a transcript's annotations on a layer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			n, err := c.CountAnnotations(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printCount(cmd.OutOrStdout(), n, opts.jsonOutput)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:     "list <transcript> <layer>",
		Aliases: []string{"ls"},
		Short:   "List a transcript's annotations on a layer",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageLength, _ := cmd.Flags().GetInt("page-length")
			pageNumber, _ := cmd.Flags().GetInt("page")

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			annotations, err := c.Annotations(cmd.Context(), args[0], args[1], pageOf(pageLength, pageNumber))
			if err != nil {
				return err
			}
			printAnnotations(cmd.OutOrStdout(), annotations, opts.jsonOutput)
			return nil
		},
	}
	addPageFlags(listCmd)

	cmd.AddCommand(countCmd, listCmd)
	return cmd
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page-length", 0, "Results per page (0 for all)")
	cmd.Flags().Int("page", 0, "Page number, from 0")
}

// filterExpression builds a query expression from an ID regular expression
// and a corpus name, or "" if both are empty.
func filterExpression(match, corpus string) string {
	var parts []string
	if match != "" {
		parts = append(parts, "/"+strings.ReplaceAll(match, "/", `\/`)+"/.test(id)")
	}
	if corpus != "" {
		parts = append(parts, "labels('corpus').includes('"+strings.ReplaceAll(corpus, "'", `\'`)+"')")
	}
	return strings.Join(parts, " && ")
}

func printCount[N int | int64](w io.Writer, n N, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]N{"count": n})
		return
	}
	fmt.Fprintln(w, n)
}
