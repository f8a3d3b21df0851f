package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jcdickinson/anthocheck/internal/check"
	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type checkOptions struct {
	*globals
	format  string
	noColor bool
}

func newCheckCmd(g *globals) *cobra.Command {
	opts := &checkOptions{globals: g}
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check the anthology and print a report",
		Example: `  anthocheck check
  anthocheck check -s essays -m essays/SUMMARY.md --orphans fail
  anthocheck check --format json > report.json`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}
	opts.registerFlags(checkCmd)
	return checkCmd
}

func (o *checkOptions) registerFlags(cmd *cobra.Command) {
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVarP(&o.format, "format", "f", "text", "report format: text or json")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false, "never color the text report")
}

func (o *checkOptions) run(cmd *cobra.Command, args []string) error {
	if o.format != "text" && o.format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", o.format)
	}
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}

	res, err := check.Run(cmd.Context(), cfg, o.logger)
	if err != nil {
		return err
	}
	o.logger.Debug("check finished", "documents", res.Report.Documents, "issues", len(res.Report.Issues), "parse_errors", len(res.Report.ParseErrors))

	out := cmd.OutOrStdout()
	policy := cfg.ReportPolicy()
	if o.format == "json" {
		err = report.WriteJSON(out, res.Report, policy)
	} else {
		err = report.WriteText(out, res.Report, report.TextOptions{
			Policy: policy,
			Color:  !o.noColor && isTerminal(out),
		})
	}
	if err != nil {
		return err
	}

	if code := report.ExitCode(res.Report, policy); code != report.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
