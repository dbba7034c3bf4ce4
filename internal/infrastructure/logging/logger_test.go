package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFromLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
		dev   bool
		want  zapcore.Level
	}{
		{"dev default", "", true, zapcore.DebugLevel},
		{"prod default", "", false, zapcore.InfoLevel},
		{"explicit", "warn", false, zapcore.WarnLevel},
		{"invalid", "loud", false, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromLevel(tt.level, tt.dev).Level())
		})
	}
}

func TestSetLevelReachesChildren(t *testing.T) {
	logger := FromLevel("info", false)
	cache := logger.Component("cache")
	assert.False(t, cache.Core().Enabled(zapcore.DebugLevel))

	logger.SetLevel(zapcore.DebugLevel)
	assert.True(t, cache.Core().Enabled(zapcore.DebugLevel))
}

func TestLevelHandler(t *testing.T) {
	logger := FromLevel("info", false)
	h := logger.LevelHandler()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"level":"error"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zapcore.ErrorLevel, logger.Level())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
	assert.NotNil(t, logger.Component("http"))
}
