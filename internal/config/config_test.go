package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "allow", cfg.Downloads.Permission)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, filepath.Join("/ws/.daybook", "media"), cfg.MediaDir("/ws/.daybook"))
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte("downloads:\n  on_collision: replace\nmedia:\n  dir: /tmp/clips\n"))
	require.NoError(t, err)
	assert.Equal(t, "replace", cfg.Downloads.OnCollision)
	assert.Equal(t, "/tmp/clips", cfg.MediaDir("/ws/.daybook"))
	assert.NotEmpty(t, cfg.Remote.TasksURL)
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"scheme":     "remote:\n  tasks_url: ftp://example.com/todos\n",
		"permission": "downloads:\n  permission: maybe\n",
		"collision":  "downloads:\n  on_collision: merge\n",
		"timeout":    "remote:\n  timeout_seconds: -1\n",
		"syntax":     "remote: [",
		"webhook":    "webhooks:\n  - url: not-a-url\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(config.Path(dir), []byte("reachability:\n  interval_seconds: 3\n"), 0o644))
	cfg, err = config.LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ProbeInterval())
}
