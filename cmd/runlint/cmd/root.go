// Package cmd implements the runlint command tree.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitFindings = 1
	ExitError    = 2
)

var (
	// ErrFindings is returned by check when at least one rule matched.
	ErrFindings = errors.New("findings reported")
	// ErrFilesFailed is returned by check when some files could not be
	// checked. It takes precedence over ErrFindings.
	ErrFilesFailed = errors.New("some files could not be checked")
)

// SetVersionInfo is called from main to inject build-time version info.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	buildDate = d
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "runlint",
		Short: "Lint the commands of Dockerfile instructions",
		Long: `runlint resolves the shell words of Dockerfile instructions against the
ARG and ENV declarations in scope, splits them into sub-commands and reports
every sub-command matching a rule from a YAML rules file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("runlint version {{.Version}} (commit: %s, built: %s)\n", commit, buildDate))
	root.AddCommand(newCheckCmd())
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrFindings):
		return ExitFindings
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
}
