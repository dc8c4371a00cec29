package host

import (
	appevents "github.com/rescp17/remotePlay/internal/app_events"
	"github.com/rescp17/remotePlay/pkg/supervisor"
)

// --- App Events (from UI to App) ---

type StartServerEvent struct {
	appevents.Event
}

type StopServerEvent struct {
	appevents.Event
}

// StartHostingEvent opens a hosting session. An empty PIN asks the app to
// generate one.
type StartHostingEvent struct {
	appevents.Event
	PIN string
}

type StopHostingEvent struct {
	appevents.Event
}

// ConfigureEvent rewrites the server configuration file.
type ConfigureEvent struct {
	appevents.Event
	Settings map[string]string
}

var (
	_ appevents.AppEvent = (*StartServerEvent)(nil)
	_ appevents.AppEvent = (*StopServerEvent)(nil)
	_ appevents.AppEvent = (*StartHostingEvent)(nil)
	_ appevents.AppEvent = (*StopHostingEvent)(nil)
	_ appevents.AppEvent = (*ConfigureEvent)(nil)
)

// --- UI Messages (from App to UI) ---

type ServerStartedMsg struct {
	PID int
}

// ServerStartFailedMsg carries the server's output from a failed launch.
type ServerStartFailedMsg struct {
	Diagnostic string
}

type ServerStoppedMsg struct {
	Clean bool
}

type HostingStartedMsg struct {
	PIN   string
	Label string
}

type HostingStoppedMsg struct{}

type ConfiguredMsg struct {
	Path string
}

type StatusMsg struct {
	Status supervisor.Status
}
