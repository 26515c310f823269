package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/wikipress/internal/contentindex"
	"github.com/starford/wikipress/internal/pipeline"
	"github.com/starford/wikipress/internal/wikilink"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	Output  OutputConfig      `yaml:"output"`
	Site    SiteConfig        `yaml:"site"`
	Report  ReportConfig      `yaml:"report"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Report.Validate(); err != nil {
		return err
	}
	if filepath.Clean(c.Output.Dir) == filepath.Clean(c.Content.Root) {
		return fmt.Errorf("output: dir must differ from content root %q", c.Content.Root)
	}
	return c.Auth.Validate()
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

// ContentConfig describes the source tree.
type ContentConfig struct {
	Root            string   `yaml:"root"`
	DocumentExt     string   `yaml:"document_extension"`
	AssetExtensions []string `yaml:"asset_extensions"`
	Exclude         []string `yaml:"exclude"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.DocumentExt, validation.Required, validation.By(dotPrefixed)),
		validation.Field(&c.AssetExtensions, validation.Required, validation.Each(validation.Required)),
	)
}

// IndexOptions converts the section into index builder options.
func (c *ContentConfig) IndexOptions(logger *slog.Logger) contentindex.Options {
	return contentindex.Options{
		DocumentExt: c.DocumentExt,
		AssetExts:   c.AssetExtensions,
		Exclude:     c.Exclude,
		Logger:      logger,
	}
}

func dotPrefixed(value any) error {
	s, _ := value.(string)
	if s != "" && (!strings.HasPrefix(s, ".") || len(s) < 2) {
		return fmt.Errorf("must start with a dot, e.g. .md")
	}
	return nil
}

// OutputConfig describes where and how rewritten documents are written.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
	Workers int    `yaml:"workers"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Format, validation.Required, validation.In(FormatMarkdown, FormatHTML)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// SiteConfig holds the placeholders emitted into rewritten links and,
// for HTML output, the URLs that replace them.
type SiteConfig struct {
	DocumentPlaceholder string `yaml:"document_placeholder"`
	StaticPlaceholder   string `yaml:"static_placeholder"`
	DocumentURL         string `yaml:"document_url"`
	StaticURL           string `yaml:"static_url"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DocumentPlaceholder, validation.Required),
		validation.Field(&c.StaticPlaceholder, validation.Required),
	)
}

// Markup returns the wiki-link markup for the given document extension.
func (c *SiteConfig) Markup(documentExt string) wikilink.Markup {
	return wikilink.Markup{
		DocumentBase: c.DocumentPlaceholder,
		StaticBase:   c.StaticPlaceholder,
		DocumentExt:  documentExt,
	}
}

// URLs returns the placeholder substitutions applied to HTML output.
func (c *SiteConfig) URLs(documentExt string) pipeline.SiteURLs {
	return pipeline.SiteURLs{
		DocumentPlaceholder: c.DocumentPlaceholder,
		StaticPlaceholder:   c.StaticPlaceholder,
		DocumentURL:         c.DocumentURL,
		StaticURL:           c.StaticURL,
		DocumentExt:         documentExt,
	}
}

// ReportConfig holds the SQLite build report configuration.
// An empty Path disables the report.
type ReportConfig struct {
	Path       string `yaml:"path"`
	KeepBuilds int    `yaml:"keep_builds"`
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.KeepBuilds, validation.Min(0)),
	)
}

// Enabled reports whether builds are recorded.
func (c *ReportConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local previews.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Root:            "./content",
			DocumentExt:     contentindex.DefaultDocumentExt,
			AssetExtensions: append([]string(nil), contentindex.DefaultAssetExts...),
		},
		Output: OutputConfig{
			Dir:     "./output",
			Format:  FormatMarkdown,
			Workers: 4,
		},
		Site: SiteConfig{
			DocumentPlaceholder: wikilink.DefaultDocumentBase,
			StaticPlaceholder:   wikilink.DefaultStaticBase,
		},
		Report: ReportConfig{
			Path:       "./wikipress.db",
			KeepBuilds: 20,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
