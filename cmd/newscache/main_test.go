package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "newscache.yaml")
	body := "log_level: warn\n" +
		"archive:\n  dsn: " + filepath.Join(dir, "news.db") + "\n" +
		"cache:\n  driver: memory\n" +
		"metrics:\n  addr: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := loadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, "sqlite", cfg.Archive.Driver)
	assert.Equal(t, time.Hour, cfg.Cache.Jitter)
	assert.Equal(t, 10*time.Second, cfg.Guard.LeaseTTL)
	assert.Equal(t, 10, cfg.Preheat.TopN)
	assert.Equal(t, []string{"127.0.0.1:6379"}, cfg.Cache.RedisAddrs)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t)
	t.Setenv("NEWSCACHE_CACHE_PREFIX", "archive:")
	t.Setenv("NEWSCACHE_PREHEAT_INTERVAL", "15m")
	cfg, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "archive:", cfg.Cache.Prefix)
	assert.Equal(t, 15*time.Minute, cfg.Preheat.Interval)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	k, err := parseKey("news:2024:10:发展", true)
	require.NoError(t, err)
	assert.Equal(t, "news:2024:10:发展", k.String())

	k, err = parseKey("news:2024:10:时政", false)
	require.NoError(t, err)
	assert.Equal(t, "news:2024:10:时政", k.String())

	_, err = parseKey("news:2024", false)
	assert.Error(t, err)
}

func TestLookupCommand(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "-c", path, "lookup", "--keyword", "news:2024:10:发展")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["found"])
	assert.Equal(t, "filter", res["source"])

	out, err = run(t, "-c", path, "lookup", "news:2024:10")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "store", res["source"])
}

func TestInvalidateCommand(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "-c", path, "invalidate", "--keyword", "news:2024:10:发展", "wordcloud:2024:10:时政:50:LDA")
	require.NoError(t, err)
	var report struct {
		Keys []struct{ Key string }
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Keys, 2)
	assert.Equal(t, "news:2024:10:发展", report.Keys[0].Key)

	_, err = run(t, "-c", path, "invalidate", "news:2024:13")
	assert.Error(t, err)

	_, err = run(t, "-c", path, "invalidate", "--cache-only", "lock:news:2024:10")
	assert.NoError(t, err)
}

func TestFlushRequiresConfirmation(t *testing.T) {
	path := writeConfig(t)
	_, err := run(t, "-c", path, "flush")
	assert.ErrorContains(t, err, "--yes")
	_, err = run(t, "-c", path, "flush", "--yes")
	assert.NoError(t, err)
}

func TestBloomCheckAndPreheat(t *testing.T) {
	path := writeConfig(t)
	out, err := run(t, "-c", path, "bloom", "check", "news:2024:10:发展")
	require.NoError(t, err)
	assert.JSONEq(t, `{"news:2024:10:发展": false}`, out)

	out, err = run(t, "-c", path, "preheat", "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"keys": 0`)
}
