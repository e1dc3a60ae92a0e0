// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg locates accountd files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName        = "accountd"
	configFileName = "accountd.yaml"
)

// ConfigDir returns the accountd config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").With("operation", "resolve home directory").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigFile returns the default config file path. The file may not exist.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// FindConfigFile returns the default config file path when it exists.
// A missing file or unresolvable home directory reports false.
func FindConfigFile() (string, bool, error) {
	path, err := ConfigFile()
	if err != nil {
		return "", false, nil //nolint:nilerr // no home directory means no default file
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", false, nil
	case err != nil:
		return "", false, oops.Code("CONFIG_FILE_INVALID").With("file", path).Wrap(err)
	case info.IsDir():
		return "", false, oops.Code("CONFIG_FILE_INVALID").With("file", path).Errorf("config path is a directory")
	}
	return path, true, nil
}
