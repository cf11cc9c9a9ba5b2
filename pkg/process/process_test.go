package process

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProcessAlive(t *testing.T) {
	assert.True(t, IsProcessAlive(os.Getpid()))
	assert.False(t, IsProcessAlive(0))
	assert.False(t, IsProcessAlive(-4))
}

func TestParsePID(t *testing.T) {
	pid, err := ParsePID([]byte(" 4242\n"))
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	_, err = ParsePID([]byte("not-a-pid"))
	assert.Error(t, err)
}
