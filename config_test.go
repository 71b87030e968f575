package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "tok-123")
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "tmp", cfg.TmpDir)
	assert.Equal(t, defaultTimezone, cfg.Timezone)
	assert.Equal(t, defaultPageCharLimit, cfg.PageCharLimit)
	assert.Equal(t, "tok-123", cfg.Discord.Token)
	assert.Equal(t, "Asia/Taipei", cfg.location().String())
	assert.Equal(t, filepath.Join("tmp", "pids.txt"), cfg.pidFilePath())
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("MY_TOKEN", "secret")
	require.NoError(t, os.WriteFile(path, []byte(`
discord:
  token: $MY_TOKEN
data_dir: /srv/bot/data
timezone: UTC
page_char_limit: 500
http:
  addr: 127.0.0.1:9100
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Discord.Token)
	assert.Equal(t, "/srv/bot/data", cfg.DataDir)
	assert.Equal(t, 500, cfg.PageCharLimit)
	assert.Equal(t, "127.0.0.1:9100", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.levelOrDefault())
	assert.Equal(t, "json", cfg.Logging.formatOrDefault())
	assert.Equal(t, "UTC", cfg.location().String())
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("discord: [unclosed"), 0o644))
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_BadTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Nowhere/Land\n"), 0o644))
	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestResolveConfigPath_PrefersVariant(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "bot_setting.json")
	prod := filepath.Join(dir, "bot_setting_prod.json")
	dev := filepath.Join(dir, "bot_setting_dev.json")

	assert.Equal(t, plain, resolveConfigPath(plain))

	require.NoError(t, os.WriteFile(prod, []byte("{}"), 0o644))
	assert.Equal(t, prod, resolveConfigPath(plain))

	require.NoError(t, os.WriteFile(dev, []byte("{}"), 0o644))
	assert.Equal(t, dev, resolveConfigPath(plain))
}

func TestLoadDotEnv_Priority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COGBOT_TEST_VAR=plain\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.prod"), []byte("COGBOT_TEST_VAR=prod\n"), 0o644))
	os.Unsetenv("COGBOT_TEST_VAR")
	t.Cleanup(func() { os.Unsetenv("COGBOT_TEST_VAR") })

	loaded := loadDotEnv(dir)
	assert.Equal(t, filepath.Join(dir, ".env.prod"), loaded)
	assert.Equal(t, "prod", os.Getenv("COGBOT_TEST_VAR"))
}

func TestResolveEnvRef(t *testing.T) {
	t.Setenv("COGBOT_REF", "value")
	assert.Equal(t, "literal", resolveEnvRef("literal", "f"))
	assert.Equal(t, "value", resolveEnvRef("$COGBOT_REF", "f"))
	assert.Equal(t, "", resolveEnvRef("$COGBOT_UNSET_REF", "f"))
	assert.Equal(t, "$", resolveEnvRef("$", "f"))
}
