package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"sotto/clipboard"
	"sotto/hotkey"
	"sotto/paste"
)

type pttOptions struct {
	longPress time.Duration
	copy      bool
	paste     bool
}

func newHotkeyCmd(c *cli) *cobra.Command {
	var opts pttOptions
	cmd := &cobra.Command{
		Use:   "hotkey",
		Short: "Dictate with " + hotkey.Chord + ": hold to talk, or tap to start and stop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			hotkey.Run(func() {
				err = c.runHotkey(cmd.Context(), hotkey.New(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
			return err
		},
	}
	cmd.Flags().DurationVar(&opts.longPress, "longpress", 350*time.Millisecond, "hold longer than this to talk; shorter presses toggle")
	cmd.Flags().BoolVar(&opts.copy, "copy", true, "copy each transcript to the clipboard")
	cmd.Flags().BoolVar(&opts.paste, "paste", false, "paste each transcript into the focused window")
	return cmd
}

// runHotkey turns chord gestures into dictate and end_recording calls on the
// host until ctx is done. Transcripts go to out, one per line.
func (c *cli) runHotkey(ctx context.Context, hk hotkey.Hotkey, opts pttOptions, out, errOut io.Writer) error {
	client, b, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if opts.paste {
		if err := paste.Init(); err != nil {
			fmt.Fprintf(errOut, "Warning: %v; transcripts will not be pasted\n", err)
			opts.paste = false
		}
	}

	if err := hk.Register(); err != nil {
		return err
	}
	defer hk.Unregister()
	fmt.Fprintf(errOut, "Hold %s to talk, or tap it to start and again to stop. Ctrl+C quits.\n", hotkey.Chord)

	results := make(chan dictateResultMsg)
	// active is done once the current dictate call has returned, which
	// bounds how long a Stop keeps retrying.
	active := ctx
	events := hotkey.Gestures(ctx, hk, opts.longPress)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev {
			case hotkey.Start:
				dctx, done := context.WithCancel(ctx)
				active = dctx
				go func() {
					v, err := b.Dictate(ctx)
					done()
					text, _ := v.(string)
					select {
					case results <- dictateResultMsg{text: text, err: err}:
					case <-ctx.Done():
					}
				}()
			case hotkey.Stop:
				go endRecording(active, b)
			}

		case r := <-results:
			deliver(r, opts, out, errOut)
		}
	}
}

func deliver(r dictateResultMsg, opts pttOptions, out, errOut io.Writer) {
	if r.err != nil {
		fmt.Fprintf(errOut, "dictate: %v\n", r.err)
		return
	}
	if r.text == "" {
		return
	}
	fmt.Fprintln(out, r.text)

	if !opts.copy && !opts.paste {
		return
	}
	if err := clipboard.Copy(r.text); err != nil {
		fmt.Fprintf(errOut, "Warning: clipboard copy failed: %v\n", err)
		return
	}
	if opts.paste {
		if err := paste.Send(); err != nil {
			fmt.Fprintf(errOut, "Warning: paste failed: %v\n", err)
		}
	}
}
