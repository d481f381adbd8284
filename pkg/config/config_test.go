package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
server:
  addr: ":8080"
  read_timeout: 10s
  debug: true
  allowed_origins:
    - http://localhost:3000
    - https://app.example.com
dispatch:
  cache_size: 1000
  max_body_size: 1048576
rate_limit:
  enabled: true
  max_requests: 60
  window: 1m
`

func writeTestConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	err := os.WriteFile(path, []byte(content), 0644)
	require.NoError(t, err)
	return path
}

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c)
	assert.NotNil(t, c.viper)
	assert.False(t, c.autoWatch)
}

func TestNewWithOptions(t *testing.T) {
	c := New(
		WithAutoWatch(true),
		WithEnvPrefix("DAO"),
	)
	assert.NotNil(t, c)
	assert.True(t, c.autoWatch)
	assert.Equal(t, "DAO", c.envPrefix)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	err := c.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.GetString("server.addr"))
	assert.Equal(t, 1000, c.GetInt("dispatch.cache_size"))
}

func TestLoadWithNameAndPaths(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "dao.yaml", testYAML)

	c := New(
		WithConfigName("dao"),
		WithConfigType("yaml"),
		WithConfigPaths(dir),
	)
	err := c.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.GetString("server.addr"))
}

func TestLoadNotFound(t *testing.T) {
	c := New(
		WithConfigName("absent"),
		WithConfigType("yaml"),
		WithConfigPaths(t.TempDir()),
	)
	err := c.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "bad.yaml", "server:\n  addr: [broken")

	c := New(WithConfigFile(cfgPath))
	err := c.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigReadFailed)
}

func TestTypedGetters(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	assert.Equal(t, ":8080", c.GetString("server.addr"))
	assert.Equal(t, 60, c.GetInt("rate_limit.max_requests"))
	assert.Equal(t, int64(1048576), c.GetInt64("dispatch.max_body_size"))
	assert.True(t, c.GetBool("server.debug"))
	assert.Equal(t, 10*time.Second, c.GetDuration("server.read_timeout"))
	assert.Equal(t, time.Minute, c.GetDuration("rate_limit.window"))
	assert.Equal(t,
		[]string{"http://localhost:3000", "https://app.example.com"},
		c.GetStringSlice("server.allowed_origins"))

	// 缺失键返回零值
	assert.Equal(t, "", c.GetString("nonexistent"))
	assert.Equal(t, 0, c.GetInt("nonexistent"))
	assert.False(t, c.GetBool("nonexistent"))
}

func TestGenericGet(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	assert.Equal(t, ":8080", Get[string](c, "server.addr"))
	assert.Equal(t, true, Get[bool](c, "server.debug"))
	// 类型不匹配或缺失返回零值
	assert.Equal(t, 0.0, Get[float64](c, "server.addr"))
	assert.Equal(t, "", Get[string](c, "nonexistent"))
}

func TestDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(
		WithConfigFile(cfgPath),
		WithDefaults(map[string]any{
			"dispatch.cache_size": 5000,
			"server.banner":       true,
		}),
	)
	require.NoError(t, c.Load())

	// 文件值覆盖默认值，未出现的键取默认值
	assert.Equal(t, 1000, c.GetInt("dispatch.cache_size"))
	assert.True(t, c.GetBool("server.banner"))
}

func TestEnvPrefix(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	t.Setenv("DAO_SERVER_ADDR", ":9090")
	c := New(
		WithConfigFile(cfgPath),
		WithEnvPrefix("DAO"),
		WithEnvKeyReplacer(strings.NewReplacer(".", "_")),
	)
	require.NoError(t, c.Load())

	assert.Equal(t, ":9090", c.GetString("server.addr"))
}

func TestSetAndIsSet(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	assert.True(t, c.IsSet("server.addr"))
	assert.False(t, c.IsSet("server.tls_cert"))

	c.Set("server.tls_cert", "/etc/ssl/cert.pem")
	assert.True(t, c.IsSet("server.tls_cert"))
	assert.Equal(t, "/etc/ssl/cert.pem", c.GetString("server.tls_cert"))
}

func TestSub(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	sub := c.Sub("rate_limit")
	require.NotNil(t, sub)
	assert.True(t, sub.GetBool("enabled"))
	assert.Equal(t, 60, sub.GetInt("max_requests"))

	assert.Nil(t, c.Sub("nonexistent"))
}

func TestUnmarshal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	type serverSection struct {
		Addr        string        `mapstructure:"addr"`
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
		Debug       bool          `mapstructure:"debug"`
	}
	var s serverSection
	require.NoError(t, c.UnmarshalKey("server", &s))
	assert.Equal(t, ":8080", s.Addr)
	assert.Equal(t, 10*time.Second, s.ReadTimeout)
	assert.True(t, s.Debug)
}

func TestWatchOnChange(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	changed := make(chan struct{}, 4)
	c := New(
		WithConfigFile(cfgPath),
		WithAutoWatch(true),
		WithOnChange(func() { changed <- struct{}{} }),
	)
	require.NoError(t, c.Load())
	assert.True(t, c.IsWatching())
	defer c.Close()

	// 修改文件触发回调并反映新值
	updated := strings.Replace(testYAML, `addr: ":8080"`, `addr: ":9000"`, 1)
	require.NoError(t, os.WriteFile(cfgPath, []byte(updated), 0644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change callback")
	}
	assert.Equal(t, ":9000", c.GetString("server.addr"))
}

func TestStopWatch(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir, "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath), WithAutoWatch(true))
	require.NoError(t, c.Load())
	assert.True(t, c.IsWatching())

	c.StopWatch()
	assert.False(t, c.IsWatching())

	// 重新开启不报错
	require.NoError(t, c.StartWatch())
	assert.True(t, c.IsWatching())
}
