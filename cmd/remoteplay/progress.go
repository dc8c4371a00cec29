package main

import (
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/remotePlay/internal/app_events"
)

// workDoneMsg ends the progress program with the work's result.
type workDoneMsg struct {
	err error
}

// progressModel prints one line per app message above an empty view.
type progressModel struct {
	msgs   <-chan tea.Msg
	format func(tea.Msg) string
	err    error
}

func (m progressModel) Init() tea.Cmd {
	return appevents.Listen(m.msgs)
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(workDoneMsg); ok {
		m.err = done.err
		return m, tea.Quit
	}
	next := appevents.Listen(m.msgs)
	if line := m.format(msg); line != "" {
		return m, tea.Sequence(tea.Println(line), next)
	}
	return m, next
}

func (m progressModel) View() string {
	return ""
}

// runProgress runs work while an inline bubbletea program prints the app's
// messages. Messages sent before work returns are printed before the
// program quits.
func runProgress(msgs <-chan tea.Msg, format func(tea.Msg) string, work func() error, opts ...tea.ProgramOption) error {
	relay := make(chan tea.Msg, cap(msgs)+1)
	go func() {
		defer close(relay)
		result := make(chan error, 1)
		go func() { result <- work() }()
		for {
			select {
			case msg := <-msgs:
				relay <- msg
			case err := <-result:
				for {
					select {
					case msg := <-msgs:
						relay <- msg
					default:
						relay <- workDoneMsg{err: err}
						return
					}
				}
			}
		}
	}()

	opts = append([]tea.ProgramOption{tea.WithInput(nil), tea.WithoutSignalHandler()}, opts...)
	final, err := tea.NewProgram(progressModel{msgs: relay, format: format}, opts...).Run()
	if err != nil {
		return err
	}
	return final.(progressModel).err
}
