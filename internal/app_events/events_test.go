package appevents

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestListen(t *testing.T) {
	ch := make(chan tea.Msg, 1)
	ch <- StatusUpdateMsg{Message: "hello"}

	cmd := Listen(ch)
	assert.Equal(t, StatusUpdateMsg{Message: "hello"}, cmd())

	close(ch)
	assert.Nil(t, cmd())
}
