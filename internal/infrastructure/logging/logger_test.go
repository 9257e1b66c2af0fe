package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewForMode(t *testing.T) {
	logger := NewForMode("warn", false)
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(-1))

	debug := NewForMode("warn", true)
	assert.True(t, debug.Core().Enabled(-1))
}

func TestComponentOnNilLogger(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Component("sweeper").Info("ignored")
	})
	assert.NotNil(t, OrNop(nil))
}
