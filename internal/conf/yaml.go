package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// Redacted returns a copy of settings with credentials masked.
func Redacted(settings *Settings) Settings {
	c := *settings
	if c.Database.MySQL.Password != "" {
		c.Database.MySQL.Password = redacted
	}
	if c.Database.Postgres.Password != "" {
		c.Database.Postgres.Password = redacted
	}
	if c.Sentry.DSN != "" {
		c.Sentry.DSN = redacted
	}
	return c
}

// WriteYAML writes settings to w as YAML with credentials masked.
func WriteYAML(w io.Writer, settings *Settings) error {
	c := Redacted(settings)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return enc.Close()
}

// SaveYAMLConfig writes settings to configPath, replacing the file atomically.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
