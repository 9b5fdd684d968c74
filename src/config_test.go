package b1ee

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func Test_LoadConfig_emptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func Test_LoadConfig_overridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "b1eed.yaml")
	yaml := "listen_addr: \":9999\"\nlog_level: debug\nannounce_service: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.AnnounceService)
	assert.Equal(t, "text", cfg.LogFormat) // untouched field keeps its default
}

func Test_Config_BindFlags_andApply(t *testing.T) {
	cfg := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)

	fv := cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen", ":1234", "--log-level", "warn"}))

	cfg.ApplyFlags(fv)

	assert.Equal(t, ":1234", cfg.ListenAddr)
	assert.Equal(t, "warn", cfg.LogLevel)
}
