package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config carries all runtime configuration for the ingestion pipeline.
type Config struct {
	Embedding EmbeddingConfig
	Raw       RawConfig
	Workers   int // 0 = min(NumCPU, 4)

	Thumbnails ThumbnailsConfig `yaml:"thumbnails"`

	DcrawPath       string
	ExiftoolPath    string
	HeifConvertPath string
}

type EmbeddingConfig struct {
	URL string // embedding server base URL, empty disables embeddings
	Dim int    // expected vector length, defaults to 512
}

type RawConfig struct {
	// PreviewFallbackFormats lists lowercase RAW format names (extension
	// without dot) whose embedded previews are extracted with exiftool
	// instead of the native container scan.
	PreviewFallbackFormats []string `yaml:"preview_fallback_formats"`
}

type ThumbnailsConfig struct {
	Sizes []ThumbnailSize `yaml:"sizes"`
}

type ThumbnailSize struct {
	Name         string `yaml:"name"`
	MaxDimension int    `yaml:"max_dimension"`
	Quality      int    `yaml:"quality"`
}

// defaultsFile mirrors the structure of the embedded defaults.yaml.
type defaultsFile struct {
	Thumbnails ThumbnailsConfig `yaml:"thumbnails"`
	Raw        RawConfig        `yaml:"raw"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults overlaid with
// environment variables.
func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// The file is embedded at build time, so this indicates a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg := &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Raw:          defaults.Raw,
		Workers:      envInt("MAX_WORKERS", 0),
		Thumbnails:   defaults.Thumbnails,
		DcrawPath:       envDefault("DCRAW_PATH", "dcraw"),
		ExiftoolPath:    envDefault("EXIFTOOL_PATH", "exiftool"),
		HeifConvertPath: envDefault("HEIF_CONVERT_PATH", "heif-convert"),
	}

	if v := os.Getenv("PREVIEW_FALLBACK_FORMATS"); v != "" {
		cfg.Raw.PreviewFallbackFormats = splitList(v)
	}
	if q := envInt("THUMBNAIL_QUALITY", 0); q > 0 {
		for i := range cfg.Thumbnails.Sizes {
			cfg.Thumbnails.Sizes[i].Quality = q
		}
	}

	return cfg
}

func envDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UsesFallbackExtraction reports whether the given RAW format name (lowercase,
// no dot) should skip native preview scanning.
func (c *RawConfig) UsesFallbackExtraction(format string) bool {
	format = strings.ToLower(format)
	for _, f := range c.PreviewFallbackFormats {
		if f == format {
			return true
		}
	}
	return false
}
