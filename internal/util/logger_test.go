package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger("debug", "console")
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger("info", "json")
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger("invalid", "json")
	assert.Error(t, err)
}

func TestRedactingCore(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(NewRedactingCore(obs))

	logger.With(zap.String("email", "jane@x.com")).Info("scan",
		zap.String("phone", "555-0100"),
		zap.String("Authorization", "Bearer abc"),
		zap.String("source", "bing"),
		zap.String("note", "contact jane@x.com"),
		zap.String("key_hint", "sk-abcdefghijklmnopqrstu"),
		zap.Int("count", 3),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()

	assert.Equal(t, MaskValue, fields["email"])
	assert.Equal(t, MaskValue, fields["phone"])
	assert.Equal(t, MaskValue, fields["Authorization"])
	assert.Equal(t, MaskValue, fields["note"])
	assert.Equal(t, MaskValue, fields["key_hint"])
	assert.Equal(t, "bing", fields["source"])
	assert.Equal(t, int64(3), fields["count"])
}

func TestRedactingCore_ErrorsWithEncodedEmail(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(NewRedactingCore(obs))

	logger.Warn("fetch failed",
		zap.Error(errors.New(`Get "https://www.bing.com/search?q=%22jane%40x.com%22": EOF`)),
		zap.NamedError("cause", errors.New("connection reset")),
	)

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, MaskValue, fields["error"])
	assert.Equal(t, "connection reset", fields["cause"])
}

func TestRedactingCore_LevelFilter(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(NewRedactingCore(obs))

	logger.Info("dropped", zap.String("email", "a@b.co"))
	logger.Warn("kept")

	assert.Equal(t, 1, logs.Len())
}
