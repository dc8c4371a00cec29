package guest

import (
	appevents "github.com/rescp17/remotePlay/internal/app_events"
	"github.com/rescp17/remotePlay/pkg/discovery"
	"github.com/rescp17/remotePlay/pkg/pairing"
)

// --- App Events (from UI to App) ---

type DiscoverEvent struct {
	appevents.Event
}

// ResolvePinEvent asks the app to find the host announcing Code.
type ResolvePinEvent struct {
	appevents.Event
	Code string
}

// ConnectEvent starts a stream to Host, pairing first when needed.
type ConnectEvent struct {
	appevents.Event
	Host discovery.HostRecord
}

type DisconnectEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = (*DiscoverEvent)(nil)
	_ appevents.AppEvent = (*ResolvePinEvent)(nil)
	_ appevents.AppEvent = (*ConnectEvent)(nil)
	_ appevents.AppEvent = (*DisconnectEvent)(nil)
)

// --- UI Messages (from App to UI) ---

type FoundHostsMsg struct {
	Source discovery.Origin
	Hosts  []discovery.HostRecord
}

// PinResolvedMsg reports the outcome of a PIN lookup; Found is false when no
// host answered.
type PinResolvedMsg struct {
	Code  string
	Host  discovery.HostRecord
	Found bool
}

// PairingPinMsg asks the user to enter PIN on the host.
type PairingPinMsg struct {
	Target string
	PIN    string
}

type PairingStateMsg struct {
	State pairing.State
}

type PairingDoneMsg struct {
	Outcome pairing.Outcome
}

type ConnectedMsg struct {
	Host discovery.HostRecord
}

type ConnectFailedMsg struct {
	Host       discovery.HostRecord
	Diagnostic string
}

type DisconnectedMsg struct {
	Clean bool
}
