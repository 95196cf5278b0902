package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configFileName = "config.yaml"

// Discover returns the configuration file to load.
// Priority order: explicit path, $HALYARD_CONFIG_DIR/config.yaml,
// ~/.config/halyard/config.yaml. An empty result means built-in defaults.
func Discover(explicit string) (string, error) {
	if explicit != "" {
		path := expandHome(explicit)
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path given with --config", path)
		}
		if info.IsDir() {
			path = filepath.Join(path, configFileName)
			if !fileExists(path) {
				return "", fmt.Errorf("directory provided but %s not found: %s", configFileName, path)
			}
		}
		return path, nil
	}

	if dir := os.Getenv("HALYARD_CONFIG_DIR"); dir != "" {
		if path := filepath.Join(expandHome(dir), configFileName); fileExists(path) {
			return path, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		if path := filepath.Join(homeDir, ".config", "halyard", configFileName); fileExists(path) {
			return path, nil
		}
	}

	return "", nil
}

// stateDir is where halyard keeps history and probe locks.
func stateDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "halyard")
	}
	return filepath.Join(homeDir, ".local", "state", "halyard")
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, rest)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
