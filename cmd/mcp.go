package cmd

import (
	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(g *globals) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run as MCP server on stdio",
		Long: `Serves the check_anthology and list_authors tools over stdio. Flags and the
config file set the defaults; tool arguments override them per call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			g.logger.Info("starting MCP server", "source", cfg.Source.Dir, "version", version)
			return mcp.NewServer(cfg, version, g.logger).Run()
		},
	}
	config.RegisterFlags(mcpCmd.Flags())
	return mcpCmd
}
