package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GenerateConfig writes the default configuration as YAML into dir.
func GenerateConfig(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return configPath, fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := yaml.Marshal(DefaultBlobnetConfig())
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// GenerateConfigIfNotExists creates a default config file in the user config
// directory if none exists. Returns the path and whether it was created.
func GenerateConfigIfNotExists(appName string) (string, bool, error) {
	configDir, err := UserConfigDir(appName)
	if err != nil {
		return "", false, err
	}

	path := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}

	path, err = GenerateConfig(configDir)
	if err != nil {
		return "", false, err
	}

	return path, true, nil
}
