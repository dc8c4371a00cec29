package main

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	guestevents "github.com/rescp17/remotePlay/internal/app_events/guest"
	"github.com/rescp17/remotePlay/internal/util"
	"github.com/rescp17/remotePlay/pkg/discovery"
	"github.com/rescp17/remotePlay/pkg/guest"
	"github.com/rescp17/remotePlay/pkg/pin"
)

type streamFlags struct {
	quality     string
	bitrate     int
	displayMode string
	noAudio     bool
	decoder     string
	app         string
}

func (f *streamFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.quality, "quality", "", "Quality preset: "+strings.Join(guest.Presets(), ", "))
	cmd.Flags().IntVar(&f.bitrate, "bitrate", 0, "Video bitrate in Kbps (0 lets the client choose)")
	cmd.Flags().StringVar(&f.displayMode, "display-mode", "", "borderless, fullscreen or windowed")
	cmd.Flags().BoolVar(&f.noAudio, "no-audio", false, "Keep audio on the host")
	cmd.Flags().StringVar(&f.decoder, "decoder", "", "Video decoder: auto, hardware or software")
	cmd.Flags().StringVar(&f.app, "app", guest.DefaultApp, "Host application to stream")
}

// streamOptions layers the flags over the configured stream defaults.
func (c *cli) streamOptions(cmd *cobra.Command, f *streamFlags) (guest.StreamOptions, error) {
	opts := guest.DefaultStreamOptions()
	g := c.cfg.Guest
	if g.Quality != "" {
		if err := opts.ApplyPreset(g.Quality); err != nil {
			return opts, err
		}
	}
	opts.Bitrate = g.Bitrate
	if g.DisplayMode != "" {
		opts.DisplayMode = guest.DisplayMode(g.DisplayMode)
	}
	opts.Audio = g.Audio
	if g.Decoder != "" {
		opts.Decoder = guest.Decoder(g.Decoder)
	}

	if f.quality != "" {
		if err := opts.ApplyPreset(f.quality); err != nil {
			return opts, err
		}
	}
	if cmd.Flags().Changed("bitrate") {
		opts.Bitrate = f.bitrate
	}
	if f.displayMode != "" {
		opts.DisplayMode = guest.DisplayMode(f.displayMode)
	}
	if f.noAudio {
		opts.Audio = false
	}
	if f.decoder != "" {
		opts.Decoder = guest.Decoder(f.decoder)
	}
	opts.App = f.app
	return opts, opts.Validate()
}

func (c *cli) guestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Pair with and stream from a host",
	}
	cmd.AddCommand(
		c.guestConnectCmd(),
		c.guestPairCmd(),
		c.guestStopCmd(),
		c.guestStatusCmd(),
		c.guestAppsCmd(),
	)
	return cmd
}

// target picks the host from a PIN or a typed address.
func (c *cli) target(cmd *cobra.Command, app *guest.App, code string, args []string) (discovery.HostRecord, error) {
	if code != "" {
		if len(args) > 0 {
			return discovery.HostRecord{}, errors.New("give either an address or --pin, not both")
		}
		if !pin.ValidCode(code) {
			return discovery.HostRecord{}, fmt.Errorf("%q is not a %d-digit PIN", code, pin.CodeLength)
		}
		h, ok := app.ResolvePin(cmd.Context(), code)
		if !ok {
			return discovery.HostRecord{}, fmt.Errorf("no host answered for PIN %s", code)
		}
		fmt.Printf("PIN %s belongs to %s\n", code, h.Address)
		return h, nil
	}
	if len(args) != 1 {
		return discovery.HostRecord{}, errors.New("a host address or --pin is required")
	}
	return guest.ManualHost(args[0])
}

func (c *cli) guestConnectCmd() *cobra.Command {
	var code string
	var flags streamFlags
	cmd := &cobra.Command{
		Use:   "connect [address]",
		Short: "Pair if needed, then stream from a host until the client closes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.streamOptions(cmd, &flags)
			if err != nil {
				return err
			}
			app := c.guestApp(opts)
			h, err := c.target(cmd, app, code, args)
			if err != nil {
				return err
			}

			err = runProgress(app.UIMessages(), formatGuest, func() error {
				return app.Connect(cmd.Context(), h)
			})
			if err != nil {
				return err
			}

			client := app.Client()
			waitWhile(cmd.Context(), client.IsConnected)
			if client.IsConnected() {
				if !app.Disconnect() {
					return errors.New("streaming client did not exit")
				}
			}
			fmt.Println("Stream ended.")
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "pin", "", "Find the host by its six-digit PIN")
	flags.register(cmd)
	return cmd
}

func (c *cli) guestPairCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "pair [address]",
		Short: "Pair the streaming client with a host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.guestApp(guest.DefaultStreamOptions())
			h, err := c.target(cmd, app, code, args)
			if err != nil {
				return err
			}
			return runProgress(app.UIMessages(), formatGuest, func() error {
				outcome, err := app.Pair(cmd.Context(), h)
				if err != nil {
					return err
				}
				if !outcome.Paired() {
					return fmt.Errorf("%w: %v", guest.ErrPairingFailed, outcome.Err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&code, "pin", "", "Find the host by its six-digit PIN")
	return cmd
}

func (c *cli) guestStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the streaming client, including one started elsewhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.guestClient()
			if !client.IsConnected() {
				fmt.Println("Not streaming.")
			}
			if !client.Disconnect() {
				return errors.New("streaming client did not exit")
			}
			fmt.Println("Stream stopped.")
			return nil
		},
	}
}

func (c *cli) guestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the streaming client state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := c.guestClient().Status()
			binary := st.Binary
			if binary == "" {
				binary = "not installed"
			}
			state := "idle"
			if st.Running {
				state = fmt.Sprintf("streaming (pid %d)", st.PID)
			}
			fmt.Printf("Client:  %s\n", binary)
			fmt.Printf("State:   %s\n", state)
			return nil
		},
	}
}

func (c *cli) guestAppsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apps <address>",
		Short: "List the applications a paired host offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := guest.ManualHost(args[0])
			if err != nil {
				return err
			}
			apps, err := c.guestClient().ListApps(cmd.Context(), h.Address)
			if err != nil {
				return err
			}
			if len(apps) == 0 {
				fmt.Println("No applications listed. Pair with the host first.")
				return nil
			}
			rows := make([][]string, 0, len(apps))
			for i, a := range apps {
				rows = append(rows, []string{fmt.Sprint(i + 1), a})
			}
			fmt.Print(util.FormatTable([]string{"#", "APPLICATION"}, []int{3, 40}, rows))
			return nil
		},
	}
}

func formatGuest(msg tea.Msg) string {
	switch m := msg.(type) {
	case guestevents.PairingPinMsg:
		return fmt.Sprintf("Enter PIN %s on %s to pair.", m.PIN, m.Target)
	case guestevents.PairingStateMsg:
		return "Pairing: " + m.State.String()
	case guestevents.PairingDoneMsg:
		if m.Outcome.Paired() {
			if m.Outcome.Masked {
				return "Paired (the client reported a failure but the host lists applications)."
			}
			return "Paired."
		}
		return fmt.Sprintf("Pairing failed: %v", m.Outcome.Err)
	case guestevents.ConnectedMsg:
		return fmt.Sprintf("Streaming from %s.", m.Host.Address)
	case guestevents.ConnectFailedMsg:
		return ""
	}
	return formatCommon(msg)
}
