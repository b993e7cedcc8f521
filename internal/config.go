package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gridsplit/internal/editservice"
	"github.com/starford/gridsplit/internal/export"
	"github.com/starford/gridsplit/internal/fonts"
	"github.com/starford/gridsplit/internal/grid"
	"github.com/starford/gridsplit/internal/imageio"
	"github.com/starford/gridsplit/internal/merge"
	"github.com/starford/gridsplit/internal/render"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Auth     AuthConfig        `yaml:"auth"`
	Fonts    FontsConfig       `yaml:"fonts"`
	Render   RenderConfig      `yaml:"render"`
	Split    SplitConfig       `yaml:"split"`
	Merge    MergeConfig       `yaml:"merge"`
	Output   OutputConfig      `yaml:"output"`
	Export   ExportConfig      `yaml:"export"`
	Sessions SessionsConfig    `yaml:"sessions"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"auth", &c.Auth},
		{"fonts", &c.Fonts},
		{"render", &c.Render},
		{"split", &c.Split},
		{"merge", &c.Merge},
		{"output", &c.Output},
		{"export", &c.Export},
		{"sessions", &c.Sessions},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// FontsConfig controls where overlay fonts come from.
//
// Dir is optional; without it only the built-in family is available. With
// Watch set, fonts dropped into Dir at runtime are picked up and sessions
// using them are redrawn.
type FontsConfig struct {
	Dir           string        `yaml:"dir"`
	Watch         bool          `yaml:"watch"`
	DefaultFamily string        `yaml:"default_family"`
	LoadTimeout   time.Duration `yaml:"load_timeout"`
}

// Validate validates the fonts configuration.
func (c *FontsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultFamily, validation.Required),
		validation.Field(&c.LoadTimeout, validation.Min(time.Duration(0))),
	)
}

// RenderConfig holds bake settings.
type RenderConfig struct {
	Interpolation string `yaml:"interpolation"`
	MaxUpscale    int    `yaml:"max_upscale"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interpolation, validation.In(render.Nearest, render.Bilinear, render.CatmullRom)),
		validation.Field(&c.MaxUpscale, validation.Required, validation.Min(1), validation.Max(16)),
	)
}

// SplitConfig holds split session defaults.
type SplitConfig struct {
	Preset    string `yaml:"preset"`
	MarginMax int    `yaml:"margin_max"`
	Policy    string `yaml:"policy"`
}

// Validate validates the split configuration.
func (c *SplitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Preset, validation.Required, validation.By(func(any) error {
			if _, ok := grid.LookupPreset(c.Preset); !ok {
				return fmt.Errorf("unknown preset %q", c.Preset)
			}
			return nil
		})),
		validation.Field(&c.MarginMax, validation.Required, validation.Min(1)),
		validation.Field(&c.Policy, validation.In(string(grid.PolicyEqual), string(grid.PolicyFree))),
	)
}

// MergeConfig holds merge session defaults.
type MergeConfig struct {
	Cols       int    `yaml:"cols"`
	Rows       int    `yaml:"rows"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`
}

// Validate validates the merge configuration.
func (c *MergeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Cols, validation.Required, validation.Min(1), validation.Max(merge.MaxGrid)),
		validation.Field(&c.Rows, validation.Required, validation.Min(1), validation.Max(merge.MaxGrid)),
		validation.Field(&c.Width, validation.Required, validation.Min(merge.MinCanvas), validation.Max(merge.MaxCanvas)),
		validation.Field(&c.Height, validation.Required, validation.Min(merge.MinCanvas), validation.Max(merge.MaxCanvas)),
		validation.Field(&c.Background, validation.Required),
	)
}

// OutputConfig holds default encoding settings. Dir is where the CLI and
// MCP server write files.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Format, validation.Required, validation.By(func(any) error {
			_, err := imageio.ParseFormat(c.Format)
			return err
		})),
		validation.Field(&c.Quality, validation.Required, validation.Min(imageio.MinQuality), validation.Max(imageio.MaxQuality)),
	)
}

// ExportConfig sizes the export worker pool.
type ExportConfig struct {
	Workers   int           `yaml:"workers"`
	ChunkSize int           `yaml:"chunk_size"`
	JobTTL    time.Duration `yaml:"job_ttl"`
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.JobTTL, validation.Required, validation.Min(time.Second)),
	)
}

// SessionsConfig bounds interactive sessions.
type SessionsConfig struct {
	IdleTTL     time.Duration `yaml:"idle_ttl"`
	MaxUploadMB int           `yaml:"max_upload_mb"`
}

// Validate validates the sessions configuration.
func (c *SessionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IdleTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.MaxUploadMB, validation.Required, validation.Min(1), validation.Max(1024)),
	)
}

// ServiceConfig maps the configuration onto the edit service settings.
func (c *Config) ServiceConfig() editservice.Config {
	return editservice.Config{
		SplitPreset:     c.Split.Preset,
		SplitPolicy:     grid.Policy(c.Split.Policy),
		MarginMax:       c.Split.MarginMax,
		MergeCols:       c.Merge.Cols,
		MergeRows:       c.Merge.Rows,
		MergeWidth:      c.Merge.Width,
		MergeHeight:     c.Merge.Height,
		MergeBackground: c.Merge.Background,
		Output:          imageio.Output{Format: imageio.Format(c.Output.Format), Quality: c.Output.Quality},
		DefaultFamily:   c.Fonts.DefaultFamily,
		IdleTTL:         c.Sessions.IdleTTL,
		FontWait:        c.Fonts.LoadTimeout,
	}
}

// ExportOptions maps the configuration onto the export runner settings.
func (c *Config) ExportOptions() export.Options {
	return export.Options{Workers: c.Export.Workers, ChunkSize: c.Export.ChunkSize, JobTTL: c.Export.JobTTL}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Fonts: FontsConfig{
			DefaultFamily: fonts.Fallback,
			LoadTimeout:   3 * time.Second,
		},
		Render: RenderConfig{
			Interpolation: render.CatmullRom,
			MaxUpscale:    4,
		},
		Split: SplitConfig{
			Preset:    grid.DefaultPreset,
			MarginMax: editservice.DefaultMarginMax,
			Policy:    string(grid.PolicyEqual),
		},
		Merge: MergeConfig{
			Cols:       2,
			Rows:       2,
			Width:      1200,
			Height:     1200,
			Background: "#ffffff",
		},
		Output: OutputConfig{
			Dir:     "./output",
			Format:  string(imageio.PNG),
			Quality: imageio.DefaultQuality,
		},
		Export: ExportConfig{
			Workers:   4,
			ChunkSize: 8,
			JobTTL:    15 * time.Minute,
		},
		Sessions: SessionsConfig{
			IdleTTL:     time.Hour,
			MaxUploadMB: 50,
		},
	}
}
