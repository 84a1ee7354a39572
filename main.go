package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sotto/config"
	"sotto/shutdown"
)

var version = "dev"

func main() {
	ctx, stop := shutdown.Context(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cli carries what the persistent flags and config resolve to; every
// subcommand reads from it.
type cli struct {
	cfg     config.Config
	logPath string
	socket  string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "sotto",
		Short:        "Dictation host and command bridge",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&c.logPath, "logpath", "", "log directory (default: OS-specific location, ./ for current dir)")
	root.PersistentFlags().StringVar(&c.socket, "socket", "", "host socket path (default: $SOTTO_HOME/sotto.sock)")

	root.AddCommand(
		newServeCmd(c),
		newDictateCmd(c),
		newRecordCmd(c),
		newEndRecordingCmd(c),
		newTranscribeCmd(c),
		newGreetCmd(c),
		newHotkeyCmd(c),
		newModelCmd(c),
		newDoctorCmd(c),
		newVersionCmd(),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.socket != "" {
		cfg.Socket = c.socket
	}
	c.cfg = cfg
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sotto version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "sotto %s\n", version)
			return nil
		},
	}
}
