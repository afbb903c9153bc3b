package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
source:
  type: http
  settings:
    base_url: https://example.com
`))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Server.Token)
	assert.Equal(t, 200*time.Millisecond, cfg.Playback.SampleInterval())
	assert.Equal(t, time.Second, cfg.Playback.ResubscribeDelay())
	assert.Equal(t, 15*time.Second, cfg.Playback.FetchTimeout())
	assert.Equal(t, 64, cfg.Playback.QueueSize)
	assert.False(t, cfg.Playback.Autoplay)
	assert.Equal(t, 44100, cfg.Media.SampleRate)
	assert.Equal(t, 100*time.Millisecond, cfg.Media.Buffer())
	assert.Equal(t, 4, cfg.Media.ResampleQuality)
	assert.Equal(t, 30*time.Second, cfg.Media.HTTPTimeout())
	assert.Equal(t, "https://example.com", cfg.Source.Settings["base_url"])
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid file source",
			yaml: `
source:
  type: file
  settings:
    path: ./song.json
playback:
  autoplay: true
`,
		},
		{
			name:    "missing source type",
			yaml:    `server: {addr: ":9000"}`,
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name:    "unknown source type",
			yaml:    `source: {type: ftp}`,
			wantErr: true,
			errMsg:  "oneof",
		},
		{
			name: "sample interval too small",
			yaml: `
source: {type: file}
playback: {sample_interval_ms: 10}
`,
			wantErr: true,
			errMsg:  "SampleIntervalMs",
		},
		{
			name: "negative resubscribe delay",
			yaml: `
source: {type: file}
playback: {resubscribe_delay_ms: -1}
`,
			wantErr: true,
			errMsg:  "ResubscribeDelayMs",
		},
		{
			name: "unsupported sample rate",
			yaml: `
source: {type: file}
media: {sample_rate: 12345}
`,
			wantErr: true,
			errMsg:  "SampleRate",
		},
		{
			name:    "malformed yaml",
			yaml:    "source: [",
			wantErr: true,
			errMsg:  "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse_ResubscribeDelay(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{name: "omitted", yaml: "source: {type: file}", want: time.Second},
		{name: "explicit zero", yaml: "source: {type: file}\nplayback: {resubscribe_delay_ms: 0}", want: 0},
		{name: "explicit value", yaml: "source: {type: file}\nplayback: {resubscribe_delay_ms: 250}", want: 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Playback.ResubscribeDelay())
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("LYRICBOX_API_TOKEN", "secret")
	t.Setenv("LYRICBOX_SOURCE_URL", "https://override.example.com")

	cfg, err := Parse([]byte(`
server:
  token: from-file
source:
  type: http
`))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Server.Token)
	assert.Equal(t, "https://override.example.com", cfg.Source.Settings["base_url"])
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: {type: file}\nplayback: {queue_size: 8}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Playback.QueueSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
