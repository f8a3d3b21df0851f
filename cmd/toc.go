package cmd

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/anthology"
	"github.com/jcdickinson/anthocheck/internal/check"
	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/manifest"
	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/spf13/cobra"
)

func newTocCmd(g *globals) *cobra.Command {
	var format string
	tocCmd := &cobra.Command{
		Use:   "toc",
		Short: "Print the parsed table of contents",
		Example: `  anthocheck toc
  anthocheck toc --format markdown > SUMMARY.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "tree" && format != "markdown" {
				return fmt.Errorf("unknown format %q (want tree or markdown)", format)
			}
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}

			trees, perrs := check.LoadManifests(cfg.Manifest.Paths, manifest.Options{RequireSections: cfg.Manifest.RequireSections})
			out := cmd.OutOrStdout()
			for i, t := range trees {
				if format == "markdown" {
					if i > 0 {
						fmt.Fprintln(out)
					}
					if err := t.RenderMarkdown(out, htmlTarget); err != nil {
						return err
					}
					continue
				}
				fmt.Fprint(out, t.RenderTree().Print())
			}

			if len(perrs) > 0 {
				report.WriteParseErrors(cmd.ErrOrStderr(), perrs)
				return &exitError{code: report.ExitMalformed}
			}
			return nil
		},
	}
	config.RegisterFlags(tocCmd.Flags())
	tocCmd.Flags().StringVarP(&format, "format", "f", "tree", "output format: tree or markdown")
	return tocCmd
}

// htmlTarget points internal document targets at their rendered page:
// "closures/traits.md#fn" -> "closures/traits.html#fn". External links and
// non-document files are left alone.
func htmlTarget(target string) string {
	if anthology.IsExternal(target) {
		return target
	}
	p, frag, hasFrag := strings.Cut(target, "#")
	if id := anthology.DocumentID(p); p != "" && id != p {
		p = id + ".html"
	}
	if hasFrag {
		return p + "#" + frag
	}
	return p
}
