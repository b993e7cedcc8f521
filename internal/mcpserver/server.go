// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes gridsplit tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/storage"
)

const namingURI = "gridsplit://output-naming"

// Server wraps the MCP server with gridsplit tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *editservice.Service
	store storage.Provider
}

// New creates a new MCP server with all gridsplit tools registered. Output
// files are written to store.
func New(svc *editservice.Service, store storage.Provider, version string) *Server {
	s := &Server{svc: svc, store: store}

	s.mcp = server.NewMCPServer(
		"gridsplit",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	texts := mcp.WithArray("texts",
		mcp.Description("Text overlays: objects with content, x, y (image or canvas pixels, baseline-left), "+
			"optional font_size, font_family, color, stroke_color, stroke_width, has_stroke"),
		mcp.Items(map[string]any{"type": "object"}),
	)

	s.mcp.AddTool(mcp.NewTool("split_image",
		mcp.WithDescription("Split one image into grid pieces and write them to the output directory. "+
			"File naming follows the gridsplit://output-naming resource."),
		mcp.WithString("image", mcp.Required(), mcp.Description("data: URI, http(s) URL or a path under the output root")),
		mcp.WithString("preset", mcp.Description("Grid preset id (see list_presets); used when no shape or lines are given")),
		mcp.WithNumber("cols", mcp.Description("Number of columns (1-10)")),
		mcp.WithNumber("rows", mcp.Description("Number of rows (1-10)")),
		mcp.WithArray("vertical", mcp.Description("Explicit vertical line positions in crop pixels"), mcp.Items(map[string]any{"type": "number"})),
		mcp.WithArray("horizontal", mcp.Description("Explicit horizontal line positions in crop pixels"), mcp.Items(map[string]any{"type": "number"})),
		mcp.WithObject("crop", mcp.Description("Crop rectangle {x, y, width, height} in image pixels")),
		mcp.WithNumber("margin", mcp.Description("Pixels trimmed from each side of every piece")),
		mcp.WithNumber("upscale", mcp.Description("Integer output scale factor (default 1)")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("png", "jpeg", "webp")),
		mcp.WithNumber("quality", mcp.Description("Encoding quality 10-100 for jpeg and webp")),
		mcp.WithString("base_name", mcp.Description("File name prefix (default split)")),
		texts,
		mcp.WithString("dir", mcp.Description("Output sub-directory (default: a fresh id)")),
		mcp.WithBoolean("zip", mcp.Description("Also write a zip archive of the pieces")),
	), s.splitImage)

	s.mcp.AddTool(mcp.NewTool("merge_images",
		mcp.WithDescription("Compose images into one grid canvas and write it to the output directory. "+
			"Images fill cells row by row."),
		mcp.WithArray("images", mcp.Required(), mcp.Description("Image sources in cell order"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("cols", mcp.Description("Grid columns (default: fitted to the image count)")),
		mcp.WithNumber("rows", mcp.Description("Grid rows (default: fitted to the image count)")),
		mcp.WithNumber("width", mcp.Description("Canvas width 100-4096")),
		mcp.WithNumber("height", mcp.Description("Canvas height 100-4096")),
		mcp.WithString("background", mcp.Description("Hex color or \"auto\" for the dominant color of the first image")),
		mcp.WithString("fit", mcp.Description("Cell placement"), mcp.Enum("fill", "fit", "center")),
		mcp.WithNumber("upscale", mcp.Description("Integer output scale factor (default 1)")),
		mcp.WithString("format", mcp.Description("Output format"), mcp.Enum("png", "jpeg", "webp")),
		mcp.WithNumber("quality", mcp.Description("Encoding quality 10-100 for jpeg and webp")),
		mcp.WithString("base_name", mcp.Description("File name prefix (default merged)")),
		texts,
		mcp.WithString("dir", mcp.Description("Output sub-directory (default: a fresh id)")),
		mcp.WithBoolean("zip", mcp.Description("Also write a zip archive")),
	), s.mergeImages)

	s.mcp.AddTool(mcp.NewTool("list_presets",
		mcp.WithDescription("List the built-in split grid presets."),
	), s.listPresets)

	s.mcp.AddTool(mcp.NewTool("list_fonts",
		mcp.WithDescription("List the font families available for text overlays."),
	), s.listFonts)

	s.mcp.AddTool(mcp.NewTool("list_outputs",
		mcp.WithDescription("List files written under the output root."),
		mcp.WithString("dir", mcp.Description("Optional sub-directory to list (empty for all)")),
	), s.listOutputs)

	s.mcp.AddTool(mcp.NewTool("delete_output",
		mcp.WithDescription("Delete one file previously written under the output root."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the output root (e.g. run-1/split_2.png)")),
	), s.deleteOutput)

	s.mcp.AddTool(mcp.NewTool("get_output_contract",
		mcp.WithDescription("Returns the rules gridsplit uses to name and place output files."),
	), s.getOutputContract)

	s.mcp.AddResource(
		mcp.NewResource(namingURI, "Output Naming Contract",
			mcp.WithResourceDescription("How split and merge outputs are named and laid out."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNamingResource,
	)

	return s
}

// Serve runs the MCP protocol over in/out until in is exhausted or ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type outputArgs struct {
	Upscale  int                    `json:"upscale"`
	Format   string                 `json:"format"`
	Quality  int                    `json:"quality"`
	BaseName string                 `json:"base_name"`
	Texts    []editservice.TextSpec `json:"texts"`
	Dir      string                 `json:"dir"`
	Zip      bool                   `json:"zip"`
}

func (o outputArgs) output() imageio.Output {
	return imageio.Output{Format: imageio.Format(strings.ToLower(o.Format)), Quality: o.Quality, BaseName: o.BaseName}
}

type splitArgs struct {
	Image      string     `json:"image"`
	Preset     string     `json:"preset"`
	Cols       int        `json:"cols"`
	Rows       int        `json:"rows"`
	Vertical   []float64  `json:"vertical"`
	Horizontal []float64  `json:"horizontal"`
	Crop       *geom.Rect `json:"crop"`
	Margin     int        `json:"margin"`
	outputArgs
}

type mergeArgs struct {
	Images     []string `json:"images"`
	Cols       int      `json:"cols"`
	Rows       int      `json:"rows"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Background string   `json:"background"`
	Fit        string   `json:"fit"`
	outputArgs
}

// bind decodes the tool arguments into v.
func bind(req mcp.CallToolRequest, v any) error {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) splitImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("image")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var args splitArgs
	if err := bind(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	img, err := s.loadImage(src)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("image: %v", err)), nil
	}

	res, err := s.svc.Split(ctx, editservice.SplitRequest{
		Image:      img,
		Preset:     args.Preset,
		Cols:       args.Cols,
		Rows:       args.Rows,
		Vertical:   args.Vertical,
		Horizontal: args.Horizontal,
		Crop:       args.Crop,
		Margin:     args.Margin,
		Upscale:    args.Upscale,
		Output:     args.output(),
		Texts:      args.Texts,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.save(args.outputArgs, res)
}

func (s *Server) mergeImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args mergeArgs
	if err := bind(req, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(args.Images) == 0 {
		return mcp.NewToolResultError("images: at least one image is required"), nil
	}
	images := make([]imageio.Image, 0, len(args.Images))
	for i, src := range args.Images {
		img, err := s.loadImage(src)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image %d: %v", i+1, err)), nil
		}
		images = append(images, img)
	}

	res, err := s.svc.Merge(ctx, editservice.MergeRequest{
		Images:     images,
		Cols:       args.Cols,
		Rows:       args.Rows,
		Width:      args.Width,
		Height:     args.Height,
		Background: args.Background,
		Fit:        args.Fit,
		Upscale:    args.Upscale,
		Output:     args.output(),
		Texts:      args.Texts,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.save(args.outputArgs, res)
}

// save writes the result under the requested directory.
func (s *Server) save(args outputArgs, res editservice.Result) (*mcp.CallToolResult, error) {
	dir := strings.Trim(args.Dir, "/")
	if dir == "" {
		dir = uuid.NewString()
	}
	out, err := editservice.SaveResult(s.store, dir, res, args.Zip)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(grid.Presets, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listFonts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(strings.Join(s.svc.Fonts().Families(), "\n")), nil
}

func (s *Server) listOutputs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("dir", "")
	files, err := s.store.List(dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("no outputs found"), nil
	}
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("%s\t%d", f.Name, f.Size))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) deleteOutput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(p); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", p)), nil
}

func (s *Server) getOutputContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OutputNamingContract), nil
}

func (s *Server) readNamingResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      namingURI,
			MIMEType: "text/markdown",
			Text:     OutputNamingContract,
		},
	}, nil
}
