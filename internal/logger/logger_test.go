package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, New(&bytes.Buffer{}, tt.level).GetLevel(), tt.level)
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")

	log.Debug().Msg("hidden")
	log.Info().Str("collection", "discrete_math_kb").Msg("Index built")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"collection":"discrete_math_kb"`)
	assert.Contains(t, out, `"time":`)
}
