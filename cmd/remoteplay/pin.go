package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescp17/remotePlay/pkg/pin"
)

func (c *cli) pinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Resolve or generate six-digit host PINs",
	}

	resolve := &cobra.Command{
		Use:   "resolve <code>",
		Short: "Find the host answering for a PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if !pin.ValidCode(code) {
				return fmt.Errorf("%q is not a %d-digit PIN", code, pin.CodeLength)
			}
			addr := c.resolver().ResolvePin(cmd.Context(), code, c.cfg.Network.PinTimeout)
			if addr == "" {
				return fmt.Errorf("no host answered for PIN %s", code)
			}
			fmt.Println(addr)
			return nil
		},
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Print a random PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := pin.Generate()
			if err != nil {
				return err
			}
			fmt.Println(code)
			return nil
		},
	}

	cmd.AddCommand(resolve, generate)
	return cmd
}
