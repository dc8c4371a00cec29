package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	hostevents "github.com/rescp17/remotePlay/internal/app_events/host"
	"github.com/rescp17/remotePlay/pkg/host"
)

func (c *cli) hostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Run and control the streaming server on this machine",
	}
	cmd.AddCommand(
		c.hostServeCmd(),
		c.hostStartCmd(),
		c.hostStopCmd(),
		c.hostRestartCmd(),
		c.hostStatusCmd(),
		c.hostConfigureCmd(),
	)
	return cmd
}

func (c *cli) hostServeCmd() *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server and answer PIN lookups until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.hostApp()
			return runProgress(app.UIMessages(), formatHost, func() error {
				return app.Serve(cmd.Context(), code)
			})
		},
	}
	cmd.Flags().StringVar(&code, "pin", "", "PIN to answer for (generated when empty)")
	return cmd
}

func (c *cli) hostStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the server and keep it running in the foreground",
		Long: "Start the server and wait until it exits or the command is interrupted, " +
			"which stops it. 'host stop' from another terminal also stops it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.hostApp()
			if app.IsRunning() {
				return fmt.Errorf("server already running (pid %d)", app.Status().PID)
			}
			ok, diag := app.StartServer()
			if !ok {
				return fmt.Errorf("server did not start:\n%s", diag)
			}
			fmt.Printf("Server running (pid %d). Press Ctrl+C to stop.\n", app.Status().PID)
			waitWhile(cmd.Context(), app.IsRunning)
			if !app.IsRunning() {
				fmt.Println("Server exited.")
				return nil
			}
			return stopServer(app)
		},
	}
}

func (c *cli) hostStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the server, including one started elsewhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopServer(c.hostApp())
		},
	}
}

func (c *cli) hostRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop and start the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.hostApp()
			ok, diag := app.RestartServer()
			if !ok {
				return fmt.Errorf("server did not restart:\n%s", diag)
			}
			fmt.Printf("Server restarted (pid %d). Press Ctrl+C to stop.\n", app.Status().PID)
			waitWhile(cmd.Context(), app.IsRunning)
			if !app.IsRunning() {
				return nil
			}
			return stopServer(app)
		},
	}
}

func (c *cli) hostStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the server is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := c.hostApp().Status()
			state := "stopped"
			if st.Running {
				state = fmt.Sprintf("running (pid %d)", st.PID)
			}
			fmt.Printf("Server:  %s\n", state)
			fmt.Printf("Config:  %s\n", st.ConfigPath)
			fmt.Printf("Label:   %s\n", st.Label)
			return nil
		},
	}
}

func (c *cli) hostConfigureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure key=value...",
		Short: "Write server settings and remember them",
		Long: "Replace the server configuration file with the given settings merged over " +
			"those saved earlier. An empty value removes a key.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := make(map[string]string, len(c.cfg.Host.Settings)+len(args))
			for k, v := range c.cfg.Host.Settings {
				settings[k] = v
			}
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				k = strings.TrimSpace(k)
				if !ok || k == "" {
					return fmt.Errorf("setting %q is not key=value", arg)
				}
				if v = strings.TrimSpace(v); v == "" {
					delete(settings, k)
					continue
				}
				settings[k] = v
			}

			app := c.hostApp()
			if err := app.Configure(settings); err != nil {
				return err
			}
			c.cfg.Host.Settings = settings
			if err := c.cfg.Save(c.configPath); err != nil {
				return err
			}
			fmt.Printf("Wrote %d settings to %s\n", len(settings), app.ConfigPath())
			if app.IsRunning() {
				fmt.Println("Restart the server for the settings to take effect.")
			}
			return nil
		},
	}
}

func stopServer(app *host.App) error {
	if !app.IsRunning() {
		fmt.Println("Server is not running.")
	}
	clean, err := app.StopServer()
	if err != nil {
		return err
	}
	if !clean {
		return fmt.Errorf("server did not exit")
	}
	fmt.Println("Server stopped.")
	return nil
}

func formatHost(msg tea.Msg) string {
	switch m := msg.(type) {
	case hostevents.ServerStartedMsg:
		return fmt.Sprintf("Server running (pid %d).", m.PID)
	case hostevents.ServerStartFailedMsg:
		return "Server did not start:\n" + m.Diagnostic
	case hostevents.HostingStartedMsg:
		return fmt.Sprintf("Hosting as %s. Guests can connect with PIN %s. Press Ctrl+C to stop.", m.Label, m.PIN)
	case hostevents.HostingStoppedMsg:
		return "Stopped answering PIN lookups."
	case hostevents.ServerStoppedMsg:
		if m.Clean {
			return "Server stopped."
		}
		return "Server did not exit."
	}
	return formatCommon(msg)
}
