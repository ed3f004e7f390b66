package config

import (
	"fmt"
	"strings"
)

// AgriAssistConfig holds the user's defaults for the CLI. Every field is
// optional; flags and environment variables take precedence.
type AgriAssistConfig struct {
	ServerURL     string `yaml:"server_url" json:"server_url" toml:"server_url"`
	Language      string `yaml:"language" json:"language" toml:"language"`
	Location      string `yaml:"location" json:"location" toml:"location"`
	DefaultCrop   string `yaml:"default_crop" json:"default_crop" toml:"default_crop"`
	DefaultSeason string `yaml:"default_season" json:"default_season" toml:"default_season"`
}

// Validate checks field values that have a closed set of options.
func (c *AgriAssistConfig) Validate() error {
	lang := strings.ToLower(strings.TrimSpace(c.Language))
	if lang != "" && lang != "en" && lang != "sw" {
		return fmt.Errorf("unsupported language %q: must be 'en' or 'sw'", c.Language)
	}
	c.Language = lang
	return nil
}
