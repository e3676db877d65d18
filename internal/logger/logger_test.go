package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/MNhat168/careerhub/internal/config"
)

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := New(config.Config{AppName: "careerhub", AppVersion: "test"})
	require.NoError(t, err)
	require.NotNil(t, log)
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewHonorsConfiguredLevel(t *testing.T) {
	log, err := New(config.Config{
		AppName: "careerhub",
		Logger:  config.LoggerConfig{Level: "debug"},
	})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBogusLevel(t *testing.T) {
	_, err := New(config.Config{
		AppName: "careerhub",
		Logger:  config.LoggerConfig{Level: "shout"},
	})
	require.Error(t, err)
}
