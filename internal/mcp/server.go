package mcp

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jcdickinson/anthocheck/internal/check"
	"github.com/jcdickinson/anthocheck/internal/config"
	"github.com/jcdickinson/anthocheck/internal/report"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

type Server struct {
	mcpServer *server.MCPServer
	cfg       *config.Config
	logger    *slog.Logger
}

// NewServer exposes checks of the anthology cfg describes. Tool arguments
// override cfg per call; cfg itself is never modified.
func NewServer(cfg *config.Config, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger}

	mcpServer := server.NewMCPServer(
		"anthocheck",
		version,
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("check_anthology",
			mcp.WithDescription("Check an anthology for missing chapters, orphaned documents, duplicate slugs, unknown or misspelled authors and broken anchors. Returns the report and the exit code the CLI would use."),
			mcp.WithString("source",
				mcp.Description("Directory of chapter documents (defaults to the configured source.dir)"),
			),
			mcp.WithArray("manifests",
				mcp.Description("Table of contents files to check against (defaults to the configured manifest.paths)"),
				mcp.Items(map[string]interface{}{"type": "string"}),
			),
			mcp.WithString("orphans",
				mcp.Description("Whether orphaned documents fail the check: \"warn\" or \"fail\""),
			),
			mcp.WithString("format",
				mcp.Description("\"text\" (default) or \"json\""),
			),
		),
		s.handleCheck,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_authors",
			mcp.WithDescription("List every author the anthology declares or cites, with the documents naming them and any spellings close enough to be typos."),
			mcp.WithString("source",
				mcp.Description("Directory of chapter documents (defaults to the configured source.dir)"),
			),
		),
		s.handleListAuthors,
	)
}

// override applies the per-call arguments to a copy of the server config.
func (s *Server) override(args map[string]any) (*config.Config, error) {
	cfg := *s.cfg
	if source, ok := args["source"].(string); ok && source != "" {
		cfg.Source.Dir = source
	}
	if raw, ok := args["manifests"].([]any); ok && len(raw) > 0 {
		cfg.Manifest.Paths = nil
		for _, v := range raw {
			p, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("manifests must be strings, got %T", v)
			}
			cfg.Manifest.Paths = append(cfg.Manifest.Paths, p)
		}
	}
	if orphans, ok := args["orphans"].(string); ok && orphans != "" {
		p, err := report.ParseOrphanPolicy(orphans)
		if err != nil {
			return nil, err
		}
		cfg.Policy.Orphans = p
	}
	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Server) handleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	cfg, err := s.override(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, _ := args["format"].(string)
	if format != "" && format != "text" && format != "json" {
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}

	res, err := check.Run(ctx, cfg, s.logger)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
	}
	s.logger.Info("checked anthology", "source", cfg.Source.Dir, "issues", len(res.Report.Issues), "parse_errors", len(res.Report.ParseErrors))

	var b strings.Builder
	if format == "json" {
		err = report.WriteJSON(&b, res.Report, cfg.ReportPolicy())
	} else {
		err = report.WriteText(&b, res.Report, report.TextOptions{Policy: cfg.ReportPolicy()})
		fmt.Fprintf(&b, "exit code: %d\n", report.ExitCode(res.Report, cfg.ReportPolicy()))
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleListAuthors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := s.override(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := check.Run(ctx, cfg, s.logger)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading anthology failed: %v", err)), nil
	}

	var b strings.Builder
	if err := report.WriteAuthors(&b, res.Registry); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
