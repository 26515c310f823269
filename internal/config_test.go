package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/wikipress/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModeDisabled, cfg.Mode)
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestContentConfig_DocumentExtNeedsDot(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Content.DocumentExt = "md"
	assert.Error(t, cfg.Validate())

	cfg.Content.DocumentExt = "."
	assert.Error(t, cfg.Validate())
}

func TestContentConfig_AssetExtensionsRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Content.AssetExtensions = nil
	assert.Error(t, cfg.Validate())
}

func TestOutputConfig_Format(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Format = "pdf"
	assert.Error(t, cfg.Validate())

	cfg.Output.Format = FormatHTML
	assert.NoError(t, cfg.Validate())
}

func TestOutputConfig_Workers(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Workers = 0
	assert.Error(t, cfg.Validate())
}

func TestReportConfig_Enabled(t *testing.T) {
	cfg := ReportConfig{}
	assert.False(t, cfg.Enabled())
	cfg.Path = "x.db"
	assert.True(t, cfg.Enabled())
}

func TestSiteConfig_Markup(t *testing.T) {
	cfg := NewDefaultConfig()
	m := cfg.Site.Markup(".md")
	assert.Equal(t, "{filename}", m.DocumentBase)
	assert.Equal(t, "{static}", m.StaticBase)
	assert.Equal(t, ".md", m.DocumentExt)
}

func TestSiteConfig_URLs(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Site.StaticURL = "/static"
	u := cfg.Site.URLs(".md")
	assert.Equal(t, "{static}", u.StaticPlaceholder)
	assert.Equal(t, "/static", u.StaticURL)
	assert.Equal(t, ".md", u.DocumentExt)
}

func TestConfig_OutputMustDifferFromContent(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Dir = "content/"
	cfg.Content.Root = "./content"
	assert.Error(t, cfg.Validate())
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("WIKIPRESS_TEST_ROOT", "/srv/content")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
content:
  root: ${WIKIPRESS_TEST_ROOT}
  exclude: [".obsidian/**"]
output:
  dir: ./public
  format: html
  workers: 2
site:
  static_url: /static
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))

	assert.Equal(t, "/srv/content", cfg.Content.Root)
	assert.Equal(t, ".md", cfg.Content.DocumentExt, "defaults survive partial files")
	assert.Equal(t, []string{".obsidian/**"}, cfg.Content.Exclude)
	assert.Equal(t, 9090, cfg.App.HTTP.Port)
	assert.Equal(t, FormatHTML, cfg.Output.Format)
	assert.Equal(t, "/static", cfg.Site.StaticURL)
	assert.Equal(t, "{static}", cfg.Site.StaticPlaceholder)
	assert.Equal(t, "DEBUG", cfg.App.LogLevel.String())
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  format: docx\n"), 0o644))

	err := pkgconfig.Load(path, NewDefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}
