// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes wikipress rewrite tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wikipress/internal/apperr"
	"github.com/starford/wikipress/internal/docservice"
	"github.com/starford/wikipress/internal/report"
)

// Server wraps the MCP server with wikipress tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all wikipress tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"wikipress",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("rewrite_text",
		mcp.WithDescription("Rewrite [[wiki-links]] and ![[embeds]] in Markdown text against the current content index. "+
			"Returns the rewritten text and one entry per substituted reference."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Markdown text to rewrite")),
	), s.rewriteText)

	s.mcp.AddTool(mcp.NewTool("resolve_reference",
		mcp.WithDescription("Resolve a single wiki-link such as [[today]] or ![[chart.png]] and show what it would be rewritten to."),
		mcp.WithString("reference", mcp.Required(), mcp.Description("Wiki-link, or a bare document name")),
	), s.resolveReference)

	s.mcp.AddTool(mcp.NewTool("normalize_tags",
		mcp.WithDescription("Normalize front-matter tags: strip '#', split on commas, trim, drop empties."),
		mcp.WithString("tags", mcp.Description("Tag value, e.g. \"#work, #home\"")),
		mcp.WithString("front_matter", mcp.Description("Raw YAML front matter; takes precedence over tags")),
	), s.normalizeTags)

	s.mcp.AddTool(mcp.NewTool("list_unresolved",
		mcp.WithDescription("List wiki-links the latest build could not resolve."),
		mcp.WithString("source", mcp.Description("Optional source document path")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 100)")),
	), s.listUnresolved)

	s.mcp.AddTool(mcp.NewTool("preview_document",
		mcp.WithDescription("Show a source document with its wiki-links rewritten, without writing output."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. notes/today.md)")),
	), s.previewDocument)

	s.mcp.AddResource(
		mcp.NewResource(SyntaxURI, "Wiki-link Syntax",
			mcp.WithResourceDescription("Reference forms wikipress rewrites and how each one is rendered."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// jsonResult renders v as indented JSON with HTML left unescaped.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.TrimSuffix(buf.String(), "\n")), nil
}

func (s *Server) rewriteText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Rewrite(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) resolveReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("reference")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.ResolveReference(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) normalizeTags(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// tags may arrive as a string or, from lenient clients, a list.
	value := req.GetArguments()["tags"]
	return jsonResult(s.svc.NormalizeTags(value, req.GetString("front_matter", "")))
}

func (s *Server) listUnresolved(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.References(ctx, report.Filter{
		UnresolvedOnly: true,
		Source:         req.GetString("source", ""),
		Limit:          req.GetInt("limit", 100),
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("no build recorded yet; run a build first"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rep.References) == 0 {
		return mcp.NewToolResultText("no unresolved references"), nil
	}
	return jsonResult(rep)
}

func (s *Server) previewDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Preview(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SyntaxURI,
			MIMEType: "text/markdown",
			Text:     WikiLinkSyntax,
		},
	}, nil
}
