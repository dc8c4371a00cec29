package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescp17/remotePlay/internal/config"
	"github.com/rescp17/remotePlay/internal/util"
	"github.com/rescp17/remotePlay/pkg/discovery"
)

func (c *cli) discoverCmd() *cobra.Command {
	var timeout time.Duration
	var browser string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List streaming hosts on the local network",
		Long:  "Browse mDNS for streaming hosts and fall back to scanning the local /24 when none answer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("browser") {
				if browser != config.BrowserAvahi && browser != config.BrowserNative {
					return fmt.Errorf("unknown browser %q", browser)
				}
				c.cfg.Network.Browser = browser
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = c.cfg.Network.DiscoveryTimeout
			}
			fmt.Fprintln(os.Stderr, "Searching for hosts...")
			result := c.discoverer().Run(cmd.Context(), timeout)
			printHosts(result)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultTimeout, "How long to browse mDNS before scanning")
	cmd.Flags().StringVar(&browser, "browser", config.BrowserAvahi, "mDNS browser: avahi or native")
	return cmd
}

func printHosts(result discovery.Result) {
	if len(result.Hosts) == 0 {
		fmt.Println("No hosts found.")
		return
	}
	rows := make([][]string, 0, len(result.Hosts))
	for _, h := range result.Hosts {
		rows = append(rows, []string{h.Name, h.Address, strconv.Itoa(h.Port), string(h.Origin)})
	}
	fmt.Print(util.FormatTable([]string{"NAME", "ADDRESS", "PORT", "ORIGIN"}, []int{24, 28, 6, 6}, rows))
}
