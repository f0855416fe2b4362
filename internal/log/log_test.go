package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithTeaLog_WritesFormattedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := InitWithTeaLog(path, "courier")
	require.NoError(t, err)
	defer cleanup()

	Info(CatQueue, "element added", "name", "00000000/0000000000000001")
	Warn(CatCLI, "odd fields", "orphan")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "[INFO] [queue] element added name=00000000/0000000000000001")
	assert.Contains(t, out, "[WARN] [cli] odd fields orphan=<missing>")
}

func TestNewListener_ReceivesLogEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := InitWithTeaLog(path, "courier")
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listener := NewListener(ctx)
	require.NotNil(t, listener)

	Info(CatMonitor, "tail me")

	msg := listener.Listen()()
	event, ok := msg.(LogEvent)
	require.True(t, ok)
	assert.Contains(t, event.Payload, "tail me")
}

func TestNewListener_NilWithoutInit(t *testing.T) {
	prev := defaultLogger
	defaultLogger = nil
	defer func() { defaultLogger = prev }()

	assert.Nil(t, NewListener(context.Background()))
}
