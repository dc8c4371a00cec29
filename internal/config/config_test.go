package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 47989, cfg.Network.ControlPort)
	assert.Equal(t, 48011, cfg.Network.PinPort)
	assert.Equal(t, 50, cfg.Network.ScanWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.ProbeTimeout)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
verbose: true
network:
  browser: native
  discovery_timeout: 2s
guest:
  quality: 4k60
  audio: false
host:
  settings:
    encoder: vaapi
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, BrowserNative, cfg.Network.Browser)
	assert.Equal(t, 2*time.Second, cfg.Network.DiscoveryTimeout)
	assert.Equal(t, 48011, cfg.Network.PinPort)
	assert.Equal(t, "4k60", cfg.Guest.Quality)
	assert.False(t, cfg.Guest.Audio)
	assert.Equal(t, []string{"moonlight-qt", "moonlight"}, cfg.Guest.Binaries)
	assert.Equal(t, map[string]string{"encoder": "vaapi"}, cfg.Host.Settings)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "network: [",
		"bad browser":   "network:\n  browser: bonjour\n",
		"bad port":      "network:\n  pin_port: 70000\n",
		"zero workers":  "network:\n  scan_workers: 0\n",
		"zero timeout":  "network:\n  probe_timeout: 0s\n",
		"no binaries":   "guest:\n  binaries: []\n",
		"empty binary":  "host:\n  binary: \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			cfg, err := Load(path)
			assert.Error(t, err)
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Guest.Quality = "720p30"
	cfg.Host.WebUser = "admin"
	cfg.Network.PinTimeout = 7 * time.Second
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pin_timeout: 7s")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDirs(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("/base", "sunshine"), cfg.HostDir("/base"))
	assert.Equal(t, filepath.Join("/base", "moonlight"), cfg.GuestDir("/base"))
	cfg.Host.ConfigDir = "/srv/sunshine"
	assert.Equal(t, "/srv/sunshine", cfg.HostDir("/base"))
}
