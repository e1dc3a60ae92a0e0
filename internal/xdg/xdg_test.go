// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/accountd", got)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config/accountd", got)
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/accountd/accountd.yaml", got)
}

func TestFindConfigFile(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		path, ok, err := FindConfigFile()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, path)
	})

	t.Run("present", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		want := filepath.Join(base, "accountd", "accountd.yaml")
		require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o700))
		require.NoError(t, os.WriteFile(want, []byte("port: 3000\n"), 0o600))

		path, ok, err := FindConfigFile()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, path)
	})

	t.Run("directory", func(t *testing.T) {
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		require.NoError(t, os.MkdirAll(filepath.Join(base, "accountd", "accountd.yaml"), 0o700))

		_, ok, err := FindConfigFile()
		require.Error(t, err)
		assert.False(t, ok)
		errutil.AssertErrorCode(t, err, "CONFIG_FILE_INVALID")
	})
}
