package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gridsplit/internal"
	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/geom"
	"github.com/starford/gridsplit/internal/imageio"
	pkgconfig "github.com/starford/gridsplit/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dir := cmd.String("out"); dir != "" {
		cfg.Output.Dir = dir
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func split(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	img, err := readImage(cmd.String("image"))
	if err != nil {
		return err
	}
	req := editservice.SplitRequest{
		Image:      img,
		Preset:     cmd.String("preset"),
		Cols:       int(cmd.Int("cols")),
		Rows:       int(cmd.Int("rows")),
		Vertical:   cmd.FloatSlice("vertical"),
		Horizontal: cmd.FloatSlice("horizontal"),
		Margin:     int(cmd.Int("margin")),
		Upscale:    int(cmd.Int("upscale")),
		Output:     outputFlags(cmd),
	}
	if s := cmd.String("crop"); s != "" {
		if req.Crop, err = parseCrop(s); err != nil {
			return err
		}
	}
	if req.Texts, err = parseTexts(cmd.String("texts")); err != nil {
		return err
	}

	saved, err := internal.RunSplit(ctx, req, cmd.String("out"), cmd.Bool("zip"), internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func mergeImages(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("merge: at least one image path is required")
	}
	req := editservice.MergeRequest{
		Cols:       int(cmd.Int("cols")),
		Rows:       int(cmd.Int("rows")),
		Width:      int(cmd.Int("width")),
		Height:     int(cmd.Int("height")),
		Background: cmd.String("background"),
		Fit:        cmd.String("fit"),
		Upscale:    int(cmd.Int("upscale")),
		Output:     outputFlags(cmd),
	}
	for _, p := range paths {
		img, err := readImage(p)
		if err != nil {
			return err
		}
		req.Images = append(req.Images, img)
	}
	if req.Texts, err = parseTexts(cmd.String("texts")); err != nil {
		return err
	}

	saved, err := internal.RunMerge(ctx, req, cmd.String("out"), cmd.Bool("zip"), internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	return printJSON(saved)
}

func readImage(path string) (imageio.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return imageio.Image{}, err
	}
	defer f.Close()
	return imageio.Decode(f, path)
}

func outputFlags(cmd *cli.Command) imageio.Output {
	return imageio.Output{
		Format:   imageio.Format(cmd.String("format")),
		Quality:  int(cmd.Int("quality")),
		BaseName: cmd.String("base-name"),
	}
}

// parseCrop reads "x,y,width,height".
func parseCrop(s string) (*geom.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("crop: want x,y,width,height, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("crop: %w", err)
		}
		v[i] = f
	}
	return &geom.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func parseTexts(s string) ([]editservice.TextSpec, error) {
	if s == "" {
		return nil, nil
	}
	var texts []editservice.TextSpec
	if err := json.Unmarshal([]byte(s), &texts); err != nil {
		return nil, fmt.Errorf("texts: %w", err)
	}
	return texts, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputFlagSet() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: output.dir from config)"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: png, jpeg or webp"},
		&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "Encoding quality 10-100 for jpeg and webp"},
		&cli.StringFlag{Name: "base-name", Usage: "Output file name prefix"},
		&cli.IntFlag{Name: "upscale", Aliases: []string{"u"}, Value: 1, Usage: "Integer output scale factor"},
		&cli.BoolFlag{Name: "zip", Usage: "Also write a zip archive"},
		&cli.StringFlag{Name: "texts", Usage: "Text overlays as a JSON array of {content, x, y, font_size, ...}"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "gridsplit",
		Usage:   "Split images along a grid, merge images into grid canvases, and bake text overlays",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (default: output.dir from config)"},
				},
			},
			{
				Name:   "split",
				Usage:  "Split one image into grid pieces",
				Action: split,
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Required: true, Usage: "Source image path"},
					&cli.StringFlag{Name: "preset", Aliases: []string{"p"}, Usage: "Grid preset id"},
					&cli.IntFlag{Name: "cols", Usage: "Number of columns"},
					&cli.IntFlag{Name: "rows", Usage: "Number of rows"},
					&cli.FloatSliceFlag{Name: "vertical", Usage: "Vertical line positions in crop pixels"},
					&cli.FloatSliceFlag{Name: "horizontal", Usage: "Horizontal line positions in crop pixels"},
					&cli.StringFlag{Name: "crop", Usage: "Crop rectangle x,y,width,height in image pixels"},
					&cli.IntFlag{Name: "margin", Usage: "Pixels trimmed from each side of every piece"},
				}, outputFlagSet()...),
			},
			{
				Name:      "merge",
				Usage:     "Compose images into one grid canvas",
				ArgsUsage: "IMAGE...",
				Action:    mergeImages,
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "cols", Usage: "Grid columns (default: fitted to the image count)"},
					&cli.IntFlag{Name: "rows", Usage: "Grid rows (default: fitted to the image count)"},
					&cli.IntFlag{Name: "width", Usage: "Canvas width"},
					&cli.IntFlag{Name: "height", Usage: "Canvas height"},
					&cli.StringFlag{Name: "background", Usage: "Hex color or auto"},
					&cli.StringFlag{Name: "fit", Usage: "Cell placement: fill, fit or center"},
				}, outputFlagSet()...),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
