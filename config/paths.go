package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const appName = "agentrelay"

// ConfigDir resolves the directory holding config.toml. AGENTRELAY_CONFIG_DIR
// wins, then $XDG_CONFIG_HOME/agentrelay, then ~/.config/agentrelay.
func ConfigDir() string {
	if dir := os.Getenv("AGENTRELAY_CONFIG_DIR"); dir != "" {
		return ExpandPath(dir)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(ExpandPath(xdg), appName)
	}
	return filepath.Join(homeDir(), ".config", appName)
}

func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return string(filepath.Separator)
}

// ExpandPath resolves a leading ~ and $VARS, then cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return homeDir()
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		path = filepath.Join(homeDir(), rest)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// ensurePrivateDir creates dir if needed and tightens it to 0700.
func ensurePrivateDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0o700 {
		return os.Chmod(dir, 0o700)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
