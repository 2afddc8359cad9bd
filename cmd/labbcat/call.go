package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

func newCallCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <operation> [name=value...]",
		Short: "Call a server operation and print the raw response",
		Long: `Call any server operation and print the full response envelope as JSON.

An operation without a "/" is a graph store query, e.g.:

  labbcat call getLayerIds
  labbcat call getAnnotations id=AP511_MikeThorpe.eaf layerId=orthography
  labbcat call --method POST api/edit/store/deleteTranscript id=old.eaf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, _ := cmd.Flags().GetString("method")
			method = strings.ToUpper(method)

			resource := args[0]
			if !strings.Contains(resource, "/") {
				resource = "api/store/" + resource
			}
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}

			c, err := opts.getClient(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Call(cmd.Context(), method, resource, params)
			if resp != nil {
				printResponse(cmd.OutOrStdout(), resp)
			}
			return err
		},
	}
	cmd.Flags().StringP("method", "X", http.MethodGet, "HTTP method")
	return cmd
}

// parseParams parses name=value arguments. A name may be repeated.
func parseParams(args []string) (url.Values, error) {
	params := url.Values{}
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter: %s (use name=value)", arg)
		}
		params.Add(name, value)
	}
	return params, nil
}
