package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFragmentsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fragments <transcript> <start> <end> [<transcript> <start> <end>...]",
		Short: "Download sound fragments",
		Long: `Download WAV fragments of transcripts' audio, given as transcript ID, start
offset, and end offset (in seconds) triples. Fragments the server cannot
provide are reported and skipped.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%3 != 0 {
				return fmt.Errorf("expected <transcript> <start> <end> triples, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			sampleRate, _ := cmd.Flags().GetInt("sample-rate")

			n := len(args) / 3
			ids := make([]string, n)
			starts := make([]float64, n)
			ends := make([]float64, n)
			for i := 0; i < n; i++ {
				ids[i] = args[3*i]
				start, err := parseOffset(args[3*i+1])
				if err != nil {
					return err
				}
				end, err := parseOffset(args[3*i+2])
				if err != nil {
					return err
				}
				if end <= start {
					return fmt.Errorf("fragment %d: end %s is not after start %s", i+1, args[3*i+2], args[3*i+1])
				}
				starts[i], ends[i] = start, end
			}

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			paths, err := c.SoundFragments(cmd.Context(), ids, starts, ends, sampleRate, dir)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), paths, opts.jsonOutput)
			return nil
		},
	}
	cmd.Flags().StringP("dir", "d", ".", "Directory to save fragments in")
	cmd.Flags().Int("sample-rate", 0, "Sample rate in Hz (0 for the original rate)")
	return cmd
}
