package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/krmcbride/runlint/internal/logging"
	"github.com/krmcbride/runlint/pkg/config"
	"github.com/krmcbride/runlint/pkg/lint"
	"github.com/krmcbride/runlint/pkg/utils"
)

type checkOptions struct {
	configPath string
	format     string
	ruleIDs    string
	verbose    bool
	logFormat  string
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [flags] [FILE...]",
		Short: "Check Dockerfiles against a rules file",
		Long: `Check parses each Dockerfile (default ./Dockerfile, "-" for stdin) and
reports the sub-commands matching the configured rules.

A file that cannot be read or parsed is logged and skipped. Exit status is
0 when nothing matched, 1 when findings were reported and 2 on errors,
including skipped files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "runlint.yaml", "rules file")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format (text or json)")
	cmd.Flags().StringVar(&opts.ruleIDs, "rules", "", "comma-separated rule ids to run (default all)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose (debug) output")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "log output format (text or json)")

	return cmd
}

func runCheck(cmd *cobra.Command, files []string, opts checkOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (must be text or json)", opts.format)
	}
	logger := logging.New(cmd.ErrOrStderr(), opts.logFormat, opts.verbose)

	rules, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	rules, err = utils.SelectByID(rules, utils.SplitList(opts.ruleIDs), func(r *config.Rule) string { return r.ID })
	if err != nil {
		return fmt.Errorf("--rules: %w", err)
	}
	logger.Debug("rules loaded", "path", opts.configPath, "count", len(rules))

	if len(files) == 0 {
		files = []string{"Dockerfile"}
	}

	linter := lint.New(rules, logger)
	var (
		findings []lint.Finding
		failed   int
	)
	for _, name := range files {
		found, err := checkFile(linter, name, cmd.InOrStdin())
		if err != nil {
			logger.Error("check failed", "file", name, "error", err)
			failed++
			continue
		}
		findings = append(findings, found...)
	}

	logger.Debug("check finished", "files", len(files), "failed", failed, "findings", len(findings))
	if err := report(cmd.OutOrStdout(), opts.format, findings); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	switch {
	case failed > 0:
		return fmt.Errorf("%w: %d of %d", ErrFilesFailed, failed, len(files))
	case len(findings) > 0:
		return ErrFindings
	}
	return nil
}

func checkFile(linter *lint.Linter, name string, stdin io.Reader) ([]lint.Finding, error) {
	if name == "-" {
		return linter.Check("<stdin>", stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open Dockerfile: %w", err)
	}
	defer f.Close()
	return linter.Check(name, f)
}

func report(w io.Writer, format string, findings []lint.Finding) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if findings == nil {
			findings = []lint.Finding{}
		}
		return enc.Encode(struct {
			Findings []lint.Finding `json:"findings"`
		}{findings})
	}

	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "%s\n    %s\n", f, f.Command); err != nil {
			return err
		}
	}
	return nil
}
