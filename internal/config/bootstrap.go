package config

import (
	"errors"
	"os"
	"path/filepath"
)

// EnsureUserConfig places an editable copy of the packaged default config
// in dataDir on first start and returns its path. An existing user copy
// is never touched, even if the packaged default has since changed.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	if _, err := os.Stat(userPath); err == nil {
		return userPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	b, err := os.ReadFile(defaultPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(userPath, b, 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}
