package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.log")

	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	cl := Component(l, "arbiter")
	cl.Info().Str("k", "v").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"arbiter"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}
