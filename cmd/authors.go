package cmd

import (
	"github.com/jcdickinson/anthocheck/internal/check"
	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/spf13/cobra"
)

func newAuthorsCmd(g *globals) *cobra.Command {
	authorsCmd := &cobra.Command{
		Use:   "authors",
		Short: "List the canonical authors and suspicious spellings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			res, err := check.Run(cmd.Context(), cfg, g.logger)
			if err != nil {
				return err
			}
			if err := report.WriteAuthors(cmd.OutOrStdout(), res.Registry); err != nil {
				return err
			}
			if len(res.Report.ParseErrors) > 0 {
				report.WriteParseErrors(cmd.ErrOrStderr(), res.Report.ParseErrors)
				return &exitError{code: report.ExitMalformed}
			}
			return nil
		},
	}
	config.RegisterFlags(authorsCmd.Flags())
	return authorsCmd
}
