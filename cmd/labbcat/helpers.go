package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nzilbb/labbcat-go/internal/config"
	"github.com/nzilbb/labbcat-go/internal/identity"
	"github.com/nzilbb/labbcat-go/internal/ledger"
	"github.com/nzilbb/labbcat-go/pkg/labbcat"
)

// resolveConfig merges the command line flags with the other config sources.
func (o *globalOptions) resolveConfig() (*config.ResolvedConfig, error) {
	cfg, err := config.ResolveConfig(config.Flags{
		URL:      o.url,
		Username: o.username,
		Password: o.password,
		Language: o.language,
		Timeout:  o.timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getClient creates a client for the configured server.
func (o *globalOptions) getClient(cmd *cobra.Command) (*labbcat.Client, error) {
	cfg, err := o.resolveConfig()
	if err != nil {
		return nil, err
	}
	o.logger.Debug().Str("url", cfg.URL).Str("project", cfg.ProjectPath).Msg("resolved config")

	clientOpts := []labbcat.ClientOption{
		labbcat.WithCredentials(cfg.Username, cfg.Password),
		labbcat.WithTimeout(cfg.Timeout),
		labbcat.WithRetries(cfg.Retries),
		labbcat.WithUserAgent(identity.UserAgent(version)),
		labbcat.WithLogger(o.logger),
	}
	if cfg.Language != "" {
		clientOpts = append(clientOpts, labbcat.WithLanguage(cfg.Language))
	}
	if !o.batch {
		clientOpts = append(clientOpts, labbcat.WithPasswordPrompt(terminalPrompt(os.Stdin, cmd.ErrOrStderr())))
	}
	return labbcat.NewClient(cfg.URL, clientOpts...)
}

// openLedger opens the local task ledger. Close it when done.
func (o *globalOptions) openLedger() (*ledger.Ledger, error) {
	path := o.ledgerPath
	if path == "" {
		var err error
		if path, err = ledger.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return ledger.Open(path)
}

// terminalPrompt asks for credentials on the terminal. It gives up when
// stdin is not a terminal.
func terminalPrompt(in *os.File, out io.Writer) labbcat.PasswordPrompt {
	fd := int(in.Fd())
	return func(username string) (string, string, error) {
		if !term.IsTerminal(fd) {
			return "", "", labbcat.ErrCredentialsRequired
		}
		if username == "" {
			fmt.Fprint(out, "Username: ")
			line, err := bufio.NewReader(in).ReadString('\n')
			if err != nil {
				return "", "", labbcat.ErrPromptCancelled
			}
			username = strings.TrimSpace(line)
		}
		fmt.Fprintf(out, "Password for %s: ", username)
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil || len(password) == 0 {
			return "", "", labbcat.ErrPromptCancelled
		}
		return username, string(password), nil
	}
}

// mapErrorToExitCode maps an error to the appropriate exit code
func mapErrorToExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case labbcat.IsServerNotRunning(err):
		return ExitServerNotRunning
	case errors.Is(err, config.ErrNotConfigured):
		return ExitNotConfigured
	case labbcat.IsNotFound(err), errors.Is(err, ledger.ErrNotFound):
		return ExitNotFound
	case labbcat.IsUnauthorized(err), labbcat.IsForbidden(err), errors.Is(err, labbcat.ErrPromptCancelled):
		return ExitPermissionDenied
	case labbcat.IsConflict(err), labbcat.IsVersionMismatch(err):
		return ExitConflict
	default:
		return ExitGeneralError
	}
}

// parseOffset parses a time offset in seconds.
func parseOffset(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid offset: %s (use seconds, e.g. 12.5)", s)
	}
	return f, nil
}

// parseLayerCondition parses a search condition of the form layer=regex.
func parseLayerCondition(s string) (layerID, regex string, err error) {
	layerID, regex, ok := strings.Cut(s, "=")
	if !ok || layerID == "" || regex == "" {
		return "", "", fmt.Errorf("invalid layer condition: %s (use layer=regex)", s)
	}
	return layerID, regex, nil
}

// pageOf returns a page for the given flags, or nil for no paging.
func pageOf(length, number int) *labbcat.Page {
	if length <= 0 {
		return nil
	}
	return &labbcat.Page{Length: length, Number: number}
}
