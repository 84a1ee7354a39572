package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sotto/bridge"
	"sotto/clipboard"
	"sotto/ipc"
)

// connect dials the host named by the config and wraps it in a bridge. The
// caller closes the client.
func (c *cli) connect(ctx context.Context) (*ipc.Client, *bridge.Bridge, error) {
	client, err := ipc.Dial(ctx, c.cfg.Socket)
	if err != nil {
		return nil, nil, err
	}
	return client, bridge.New(client), nil
}

func printResult(w io.Writer, v any) {
	switch v := v.(type) {
	case nil:
	case string:
		if v != "" {
			fmt.Fprintln(w, v)
		}
	default:
		fmt.Fprintln(w, v)
	}
}

const endRetry = 50 * time.Millisecond

// endRecording asks the host to end its recording. The host may not have
// begun recording when the request arrives, so it is retried until it lands
// or ctx is done.
func endRecording(ctx context.Context, b *bridge.Bridge) error {
	for {
		_, err := b.EndRecording(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(endRetry):
		}
	}
}

// endOnEnter ends the host's recording once a line arrives on in.
func endOnEnter(ctx context.Context, b *bridge.Bridge, in io.Reader) {
	go func() {
		if _, err := bufio.NewReader(in).ReadString('\n'); err != nil {
			return
		}
		endRecording(ctx, b)
	}()
}

// runUntilEnter invokes a long-running recording command and lets the user
// finish it from the terminal. end_recording from another client works too.
func runUntilEnter(ctx context.Context, b *bridge.Bridge, in io.Reader, call func(context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	endOnEnter(ctx, b, in)
	return call(ctx)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func newDictateCmd(c *cli) *cobra.Command {
	var copyText, noTUI bool
	cmd := &cobra.Command{
		Use:   "dictate",
		Short: "Record until Enter, then print the transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, b, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			var text string
			if !noTUI && isTerminal(os.Stdin) && isTerminal(os.Stderr) {
				text, err = runDictateTUI(ctx, b)
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "Recording... press Enter to stop.")
				var v any
				v, err = runUntilEnter(ctx, b, cmd.InOrStdin(), b.Dictate)
				text, _ = v.(string)
			}
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), text)

			if copyText && text != "" {
				if err := clipboard.Copy(text); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: clipboard copy failed: %v\n", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyText, "copy", false, "also copy the transcript to the clipboard")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "plain output even on a terminal")
	return cmd
}

func newRecordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record until Enter and print the saved WAV path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			client, b, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			fmt.Fprintln(cmd.ErrOrStderr(), "Recording... press Enter to stop.")
			v, err := runUntilEnter(ctx, b, cmd.InOrStdin(), b.Record)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newEndRecordingCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "end-recording",
		Short: "Stop the recording in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, b, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()
			_, err = b.EndRecording(cmd.Context())
			return err
		},
	}
}

func newTranscribeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe [file.wav]",
		Short: "Transcribe a WAV file, or the latest recording",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, b, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			var v any
			if len(args) == 1 {
				// the host resolves paths against its own working directory
				path, perr := filepath.Abs(args[0])
				if perr != nil {
					return perr
				}
				v, err = b.TranscribeFile(ctx, path)
			} else {
				v, err = b.Transcribe(ctx)
			}
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newGreetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "greet NAME",
		Short: "Check the bridge round trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			client, b, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			v, err := b.Greet(ctx, args[0])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
