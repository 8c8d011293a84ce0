package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dgallion1/lessonsync/internal/heading"
)

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error
	switch name {
	case "classify_html":
		result, err = srv.classifyHTML(ctx, req)
	case "convert_content":
		result, err = srv.convertContent(ctx, req)
	case "outline_content":
		result, err = srv.outlineContent(ctx, req)
	case "chunk_content":
		result, err = srv.chunkContent(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestClassifyHTML(t *testing.T) {
	srv := New(nil, "test")
	res := callTool(t, srv, "classify_html", map[string]any{
		"html": `<p style="font-size:32px">Big</p><p>small</p>`,
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	var results []heading.Result
	if err := json.Unmarshal([]byte(resultText(res)), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 || results[0].Level != 1 || results[1].Level != heading.NotHeading {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestClassifyHTML_MissingArg(t *testing.T) {
	res := callTool(t, New(nil, "test"), "classify_html", map[string]any{})
	if !res.IsError {
		t.Error("expected error result without html")
	}
}

func TestConvertContent(t *testing.T) {
	srv := New(nil, "test")
	res := callTool(t, srv, "convert_content", map[string]any{
		"content": `<p><b>UNIT ONE</b></p><p>Read this.</p>`,
	})
	if got := resultText(res); got != "### **UNIT ONE**\n\nRead this." {
		t.Errorf("unexpected markdown %q", got)
	}

	res = callTool(t, srv, "convert_content", map[string]any{
		"content": "# Title",
		"html":    true,
	})
	if got := resultText(res); !strings.Contains(got, "<h1>Title</h1>") {
		t.Errorf("expected html output, got %q", got)
	}
}

func TestOutlineContent(t *testing.T) {
	res := callTool(t, New(nil, "test"), "outline_content", map[string]any{
		"content": "# A\n\n## B\n\ntext\n\n# C",
	})
	var out struct {
		Sections []struct {
			Title    string `json:"title"`
			Children []any  `json:"children"`
		} `json:"sections"`
	}
	if err := json.Unmarshal([]byte(resultText(res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Sections) != 2 || out.Sections[0].Title != "A" || len(out.Sections[0].Children) != 1 {
		t.Errorf("unexpected outline %+v", out)
	}
}

func TestChunkContent(t *testing.T) {
	res := callTool(t, New(nil, "test"), "chunk_content", map[string]any{
		"content":    "# Unit\n\nFirst part.\n\n## Detail\n\nSecond part.",
		"chunk_size": 100,
	})
	var chunks []struct {
		Text       string   `json:"text"`
		Breadcrumb []string `json:"breadcrumb"`
	}
	if err := json.Unmarshal([]byte(resultText(res)), &chunks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(chunks) != 2 || chunks[1].Text != "Second part." || len(chunks[1].Breadcrumb) != 2 {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

func TestHeadingRulesResource(t *testing.T) {
	srv := New(nil, "test")
	contents, err := srv.readHeadingRules(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("expected one resource, got %v %v", contents, err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(tc.Text, "24pt") {
		t.Errorf("unexpected resource %+v", contents[0])
	}
}
