package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns BTE_CONFIG if set, otherwise ~/.bte/config.
func GetConfigPath() (string, error) {
	if path := os.Getenv("BTE_CONFIG"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bte", "config"), nil
}
