package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	log.Debug().Str("stream", "cam-1").Msg("frame segmented")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "debug", event["level"])
	assert.Equal(t, "cam-1", event["stream"])
	assert.Equal(t, "frame segmented", event["message"])
	assert.Contains(t, event, "time")
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "WARN", Format: FormatJSON}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(DefaultConfig(), &buf)
	require.NoError(t, err)

	log.Info().Msg("segmenter initialized")
	assert.Contains(t, buf.String(), "segmenter initialized")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "empty level", cfg: Config{Format: FormatJSON}},
		{name: "bad level", cfg: Config{Level: "loud", Format: FormatJSON}, wantErr: true},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
		{name: "missing format", cfg: Config{Level: "info"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
