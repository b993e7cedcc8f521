package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	_ "image/png"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/render"
	"github.com/starford/gridsplit/internal/storage"
	"github.com/starford/gridsplit/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.OutputDir(t)
	reg := testutil.Fonts(t)
	rend, err := render.New(reg, render.Options{Interpolation: render.Nearest})
	if err != nil {
		t.Fatal(err)
	}
	runner := export.NewRunner(export.Options{Workers: 2}, nil, testutil.Logger())
	t.Cleanup(runner.Close)
	svc := editservice.New(editservice.Config{FontWait: 10 * time.Millisecond}, reg, rend, runner, nil, testutil.Logger())
	return New(svc, store, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "split_image":
		result, err = srv.splitImage(ctx, req)
	case "merge_images":
		result, err = srv.mergeImages(ctx, req)
	case "list_presets":
		result, err = srv.listPresets(ctx, req)
	case "list_fonts":
		result, err = srv.listFonts(ctx, req)
	case "list_outputs":
		result, err = srv.listOutputs(ctx, req)
	case "delete_output":
		result, err = srv.deleteOutput(ctx, req)
	case "get_output_contract":
		result, err = srv.getOutputContract(ctx, req)
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

func dataURI(t *testing.T, w, h int) string {
	t.Helper()
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG(t, testutil.Gradient(w, h)))
}

func decodeOutcome(t *testing.T, r *mcp.CallToolResult) editservice.Saved {
	t.Helper()
	if r.IsError {
		t.Fatalf("tool error: %s", resultText(r))
	}
	var out editservice.Saved
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	return out
}

func imageSize(t *testing.T, store storage.Provider, path string) (int, int) {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return cfg.Width, cfg.Height
}

func TestSplitImageWritesPieces(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "split_image", map[string]interface{}{
		"image":   dataURI(t, 200, 100),
		"cols":    2,
		"rows":    1,
		"upscale": 2,
		"dir":     "run",
		"zip":     true,
	})
	out := decodeOutcome(t, r)

	want := []string{"run/split_1.png", "run/split_2.png"}
	if strings.Join(out.Files, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", out.Files, want)
	}
	if strings.Join(out.Regions, ",") != "split_1_1,split_1_2" {
		t.Fatalf("regions = %v", out.Regions)
	}
	for _, f := range out.Files {
		if w, h := imageSize(t, store, f); w != 200 || h != 200 {
			t.Fatalf("%s = %dx%d, want 200x200", f, w, h)
		}
	}
	if out.Archive != "run/split_images.zip" {
		t.Fatalf("archive = %q", out.Archive)
	}
	if _, err := store.Read(out.Archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
}

func TestMergeImagesFromOutputPaths(t *testing.T) {
	srv, store := testServer(t)
	if err := store.Write("in/a.png", testutil.PNG(t, testutil.Solid(50, 50, color.RGBA{R: 255, A: 255}))); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("in/b.png", testutil.PNG(t, testutil.Solid(50, 50, color.RGBA{B: 255, A: 255}))); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "merge_images", map[string]interface{}{
		"images":    []interface{}{"in/a.png", "in/b.png"},
		"width":     400,
		"height":    200,
		"fit":       "fill",
		"format":    "jpeg",
		"base_name": "sheet",
		"dir":       "out",
	})
	out := decodeOutcome(t, r)
	if len(out.Files) != 1 || out.Files[0] != "out/sheet_1.jpg" {
		t.Fatalf("files = %v", out.Files)
	}
	if w, h := imageSize(t, store, out.Files[0]); w != 400 || h != 200 {
		t.Fatalf("merged = %dx%d", w, h)
	}
}

func TestToolErrors(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
	}{
		{"missing image", "split_image", map[string]interface{}{}},
		{"text data uri", "split_image", map[string]interface{}{"image": "data:text/plain;base64,aGVsbG8="}},
		{"missing file", "split_image", map[string]interface{}{"image": "nope/missing.png"}},
		{"path escape", "split_image", map[string]interface{}{"image": "../etc/passwd"}},
		{"unknown preset", "split_image", map[string]interface{}{"image": dataURI(t, 40, 40), "preset": "hex9"}},
		{"too many cols", "split_image", map[string]interface{}{"image": dataURI(t, 40, 40), "cols": 11}},
		{"no images", "merge_images", map[string]interface{}{"images": []interface{}{}}},
		{"bad fit", "merge_images", map[string]interface{}{"images": []interface{}{dataURI(t, 10, 10)}, "fit": "stretch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if r := callTool(t, srv, tt.tool, tt.args); !r.IsError {
				t.Fatalf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestListOutputs(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "list_outputs", map[string]interface{}{})
	if resultText(r) != "no outputs found" {
		t.Fatalf("empty list = %q", resultText(r))
	}

	_ = store.Write("a/split_1.png", []byte("x"))
	_ = store.Write("b/merged_1.png", []byte("yy"))
	r = callTool(t, srv, "list_outputs", map[string]interface{}{"dir": "b"})
	if text := resultText(r); text != "b/merged_1.png\t2" {
		t.Fatalf("list = %q", text)
	}
}

func TestDeleteOutput(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("run/split_1.png", []byte("x"))

	r := callTool(t, srv, "delete_output", map[string]interface{}{"path": "run/split_1.png"})
	if resultText(r) != "deleted: run/split_1.png" {
		t.Fatalf("delete = %q", resultText(r))
	}
	if _, err := store.Read("run/split_1.png"); err == nil {
		t.Fatal("file still present")
	}
	if r := callTool(t, srv, "delete_output", map[string]interface{}{"path": "run/split_1.png"}); !r.IsError {
		t.Fatal("expected error for a missing file")
	}
}

func TestListPresetsAndFonts(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "list_presets", nil)); !strings.Contains(text, `"cross4"`) {
		t.Fatalf("presets = %q", text)
	}
	if text := resultText(callTool(t, srv, "list_fonts", nil)); text != "Go" {
		t.Fatalf("fonts = %q", text)
	}
}

func TestOutputContractResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readNamingResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != namingURI || !strings.Contains(tc.Text, "{base_name}_{n}.{ext}") {
		t.Fatalf("resource = %+v", contents[0])
	}
	if resultText(callTool(t, srv, "get_output_contract", nil)) != OutputNamingContract {
		t.Fatal("contract tool and resource differ")
	}
}

func TestCheckBlockedHost(t *testing.T) {
	tests := []struct {
		host    string
		blocked bool
	}{
		{"127.0.0.1", true},
		{"::1", true},
		{"169.254.169.254", true},
		{"metadata.google.internal", true},
		{"93.184.216.34", false},
	}
	for _, tt := range tests {
		if err := checkBlockedHost(tt.host); (err != nil) != tt.blocked {
			t.Errorf("%s: err = %v, blocked = %v", tt.host, err, tt.blocked)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	if _, err := decodeDataURI("data:image/png,abc"); err == nil {
		t.Error("non-base64 URI accepted")
	}
	if _, err := decodeDataURI("data:image/png;base64"); err == nil {
		t.Error("URI without payload accepted")
	}
	data, err := decodeDataURI("data:image/png;base64,aGk")
	if err != nil || string(data) != "hi" {
		t.Errorf("unpadded = %q, %v", data, err)
	}
}

func TestCheckMagicBytes(t *testing.T) {
	if err := checkMagicBytes([]byte("<html></html>")); err == nil {
		t.Error("html accepted as image")
	}
	if err := checkMagicBytes(testutil.PNG(t, testutil.Gradient(4, 4))); err != nil {
		t.Error(err)
	}
	if err := checkMagicBytes([]byte("II*\x00rest")); err != nil {
		t.Errorf("tiff: %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	srv, _ := testServer(t)
	in, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, in, io.Discard) }()
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
