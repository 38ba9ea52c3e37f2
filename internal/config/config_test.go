package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 100, cfg.WindowLines)
	assert.Equal(t, 5*time.Second, cfg.ControlTimeout)
	assert.Equal(t, filepath.Join(home, ".local", "share", "hashcat", "hashcat.potfile"), cfg.Potfile())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("HASHCAT_PATH", "/opt/hashcat/hashcat.bin")
	t.Setenv("ENGINE_DATA_DIR", "/srv/engine")
	t.Setenv("HASHCAT_POTFILE", "/srv/engine/pot")
	t.Setenv("OUTPUT_WINDOW_LINES", "250")
	t.Setenv("CONTROL_TIMEOUT", "1500ms")
	t.Setenv("STOP_GRACE", "3")
	t.Setenv("MAX_WORKLOAD", "1")
	t.Setenv("CLEANUP_SCHEDULE", "@every 30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/opt/hashcat/hashcat.bin", cfg.HashcatPath)
	assert.Equal(t, "/srv/engine", cfg.DataDir)
	assert.Equal(t, "/srv/engine/pot", cfg.Potfile())
	assert.Equal(t, 250, cfg.WindowLines)
	assert.Equal(t, 1500*time.Millisecond, cfg.ControlTimeout)
	assert.Equal(t, 3*time.Second, cfg.StopGrace)
	assert.Equal(t, 1, cfg.MaxWorkload)
	assert.Equal(t, "@every 30s", cfg.CleanupSchedule)
}

func TestLoadYAMLThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := `hashcat_path: /usr/local/bin/hashcat
output_window_lines: 40
stop_grace: 2s
listen_addr: 127.0.0.1:9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("LISTEN_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/hashcat", cfg.HashcatPath)
	assert.Equal(t, 40, cfg.WindowLines)
	assert.Equal(t, 2*time.Second, cfg.StopGrace)
	assert.Equal(t, ":7000", cfg.ListenAddr)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing yaml", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("output_window_lines: [nope"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("zero window", func(t *testing.T) {
		t.Setenv("OUTPUT_WINDOW_LINES", "0")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("OUTPUT_WINDOW_LINES", "lots")
	t.Setenv("CONTROL_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowLines, cfg.WindowLines)
	assert.Equal(t, DefaultControlTimeout, cfg.ControlTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty hashcat path", func(c *Config) { c.HashcatPath = " " }, true},
		{"negative grace", func(c *Config) { c.StopGrace = -time.Second }, true},
		{"workload too high", func(c *Config) { c.MaxWorkload = 3 }, true},
		{"workload zero", func(c *Config) { c.MaxWorkload = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
