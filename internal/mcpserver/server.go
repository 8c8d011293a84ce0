// Package mcpserver exposes heading classification and content conversion
// as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dgallion1/lessonsync/internal/chunker"
	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/markdown"
	"github.com/dgallion1/lessonsync/internal/parser"
)

// Server wraps the MCP server with lessonsync tools.
type Server struct {
	mcp *server.MCPServer
	cls *heading.Classifier
}

// New creates a new MCP server. cls is the default classifier; nil uses
// language-neutral rules.
func New(cls *heading.Classifier, version string) *Server {
	if cls == nil {
		cls = heading.Parse("")
	}
	s := &Server{cls: cls}

	s.mcp = server.NewMCPServer(
		"lessonsync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_html",
		mcp.WithDescription("Infer heading levels for the paragraphs and headings of an HTML fragment "+
			"from font size, weight and capitalization."),
		mcp.WithString("html", mcp.Required(), mcp.Description("HTML markup, e.g. pasted from a word processor")),
		mcp.WithString("language", mcp.Description("Optional BCP 47 tag for case rules (e.g. tr)")),
	), s.classifyHTML)

	s.mcp.AddTool(mcp.NewTool("convert_content",
		mcp.WithDescription("Convert HTML or markdown lesson content to normalized markdown. "+
			"Styled paragraphs become headings."),
		mcp.WithString("content", mcp.Required(), mcp.Description("HTML or markdown content")),
		mcp.WithString("language", mcp.Description("Optional BCP 47 tag for case rules")),
		mcp.WithBoolean("html", mcp.Description("Return HTML instead of markdown")),
	), s.convertContent)

	s.mcp.AddTool(mcp.NewTool("outline_content",
		mcp.WithDescription("Return the heading hierarchy of HTML or markdown lesson content as JSON."),
		mcp.WithString("content", mcp.Required(), mcp.Description("HTML or markdown content")),
		mcp.WithString("language", mcp.Description("Optional BCP 47 tag for case rules")),
	), s.outlineContent)

	s.mcp.AddTool(mcp.NewTool("chunk_content",
		mcp.WithDescription("Split HTML or markdown lesson content into heading-scoped chunks with "+
			"breadcrumbs, sized for retrieval or prompting."),
		mcp.WithString("content", mcp.Required(), mcp.Description("HTML or markdown content")),
		mcp.WithNumber("chunk_size", mcp.Description("Target chunk size in tokens (default 500)")),
		mcp.WithString("language", mcp.Description("Optional BCP 47 tag for case rules")),
	), s.chunkContent)

	s.mcp.AddResource(
		mcp.NewResource("lessonsync://heading-rules", "Heading Inference Rules",
			mcp.WithResourceDescription("How paragraph styling maps to heading levels."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readHeadingRules,
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

func (s *Server) classifier(req mcp.CallToolRequest) *heading.Classifier {
	if lang := req.GetString("language", ""); lang != "" {
		return heading.Parse(lang)
	}
	return s.cls
}

func (s *Server) classifyHTML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := req.RequireString("html")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.classifier(req).ScanString(markup)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []heading.Result{}
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) convertContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cls := s.classifier(req)
	tree, err := parser.Content(content, cls)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ser := &markdown.Serializer{Classifier: cls}
	if req.GetBool("html", false) {
		return mcp.NewToolResultText(ser.HTML(tree)), nil
	}
	return mcp.NewToolResultText(ser.Serialize(tree)), nil
}

func (s *Server) outlineContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := parser.Content(content, s.classifier(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(doctree.BuildOutline(tree), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) chunkContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := parser.Content(content, s.classifier(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg := chunker.DefaultConfig()
	if n := req.GetInt("chunk_size", 0); n > 0 {
		cfg.ChunkSize = n
	}
	chunks := chunker.ChunkTree(tree, cfg)
	if chunks == nil {
		chunks = []chunker.Chunk{}
	}
	out, _ := json.MarshalIndent(chunks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readHeadingRules(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "lessonsync://heading-rules",
			MIMEType: "text/markdown",
			Text:     HeadingRules,
		},
	}, nil
}
