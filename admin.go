package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"sotto/doctor"
	"sotto/model"
)

var errChecksFailed = errors.New("some checks failed")

func newModelCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage local whisper models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newModelListCmd(c), newModelDownloadCmd(c))
	return cmd
}

func newModelListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the known models and which are downloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := newModelStore(c.cfg, nil)
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("MODEL", "RAM", "STATUS")
			for _, m := range model.All() {
				var marks []string
				if _, ok := store.Get(m); ok {
					marks = append(marks, "downloaded")
				}
				if string(m) == c.cfg.Model {
					marks = append(marks, "configured")
				}
				mark := strings.Join(marks, ", ")
				t.Row(string(m), fmt.Sprintf("~%d MB", m.MemoryMB()), mark)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
}

func newModelDownloadCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "download [model]",
		Short: "Download a model (default: the configured one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := c.cfg.Model
			if len(args) == 1 {
				name = args[0]
			}
			m, err := model.Parse(name)
			if err != nil {
				return err
			}
			store := newModelStore(c.cfg, cmd.ErrOrStderr())
			var path string
			if force {
				path, err = store.Download(cmd.Context(), m)
			} else {
				path, err = store.GetOrDownload(cmd.Context(), m)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "download again even if the model exists")
	return cmd
}

func newDoctorCmd(c *cli) *cobra.Command {
	var listen time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check microphone, backend and host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := doctor.Env{Config: c.cfg, Listen: listen}
			if doctor.Run(cmd.Context(), env, cmd.OutOrStdout()) != 0 {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&listen, "listen", 0, "also record and transcribe for this long (e.g. 3s)")
	return cmd
}
