// Command kvs-client sends Get/Set/Remove requests to a kvs-server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iamNilotpal/kvs/internal/client"
	"github.com/iamNilotpal/kvs/pkg/options"
)

const version = "0.1.0"

func main() {
	var showVer bool

	root := &cobra.Command{
		Use:           "kvs-client",
		Short:         "a multi-threaded key-value store client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVer {
				fmt.Println(version)
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolVarP(&showVer, "version", "V", false, "print the version")

	root.AddCommand(setCmd(), getCmd(), rmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:           "set KEY VALUE",
		Short:         "set the value of a string key to a string",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Connect(addr)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Set(args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&addr, "addr", options.DefaultListenAddr, "IP_ADDR:PORT of the server")
	return cmd
}

func getCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:           "get KEY",
		Short:         "get the string value of a given string key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Connect(addr)
			if err != nil {
				return err
			}
			defer c.Close()

			value, ok, err := c.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Key not found")
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", options.DefaultListenAddr, "IP_ADDR:PORT of the server")
	return cmd
}

func rmCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:           "rm KEY",
		Short:         "remove a given key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Connect(addr)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Remove(args[0])
		},
	}
	cmd.Flags().StringVar(&addr, "addr", options.DefaultListenAddr, "IP_ADDR:PORT of the server")
	return cmd
}
