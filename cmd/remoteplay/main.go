package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/remotePlay/internal/config"
	"github.com/rescp17/remotePlay/internal/util"
)

// cli carries what every subcommand needs after the root pre-run.
type cli struct {
	configPath string
	verbose    bool

	baseDir string
	cfg     config.Config
	logFile io.Closer
}

func main() {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "remoteplay",
		Short: "Stream games between machines on a local network",
		Long: "remoteplay finds streaming hosts on the local network, pairs the streaming " +
			"client with them and supervises the native server and client processes.",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.close() },
	}
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Configuration file (default <user config dir>/remoteplay/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Write debug output to the log file")

	cmd.AddCommand(c.discoverCmd())
	cmd.AddCommand(c.pinCmd())
	cmd.AddCommand(c.hostCmd())
	cmd.AddCommand(c.guestCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, cmd)
	stop()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and points logging at the log file.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	c.baseDir = dir
	if c.configPath == "" {
		c.configPath = filepath.Join(dir, "config.yaml")
	}

	c.cfg, err = config.Load(c.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		c.cfg.Verbose = c.verbose
	}

	logDir := filepath.Join(dir, "logs")
	if err := util.EnsureDirectory(logDir); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(logDir, "remoteplay.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	c.logFile = f
	log.SetOutput(f)

	level := slog.LevelInfo
	if c.cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	slog.Info("remoteplay started", "command", cmd.CommandPath(), "config", c.configPath)
	return nil
}

func (c *cli) close() {
	if c.logFile == nil {
		return
	}
	if err := c.logFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
	c.logFile = nil
}
