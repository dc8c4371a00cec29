package supervisor

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_MergesOutput(t *testing.T) {
	c, err := Spawn([]string{"sh", "-c", "echo out; echo err >&2; exit 4"}, nil)
	require.NoError(t, err)

	var lines []string
	sc := bufio.NewScanner(c.Output())
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	assert.ElementsMatch(t, []string{"out", "err"}, lines)
	assert.Equal(t, 4, c.Wait())
}

func TestSpawn_Terminate(t *testing.T) {
	c, err := Spawn([]string{"sh", "-c", "trap '' TERM; sleep 30"}, nil)
	require.NoError(t, err)

	start := time.Now()
	c.Terminate(200 * time.Millisecond)
	assert.Less(t, time.Since(start), 3*time.Second)

	select {
	case <-c.Done():
	default:
		t.Fatal("child still running after Terminate")
	}
	assert.Equal(t, -1, c.Wait())
}

func TestSpawn_MissingBinary(t *testing.T) {
	_, err := Spawn([]string{"definitely-not-a-real-binary-xyz"}, nil)
	assert.Error(t, err)
}
