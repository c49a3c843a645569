package main

import (
	"context"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/framer/internal/config"
	"github.com/vango-dev/framer/internal/errors"
	"github.com/vango-dev/framer/pkg/client"
	"github.com/vango-dev/framer/pkg/correlate"
	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
)

type sendFlags struct {
	codec     codecFlags
	addr      string
	timeout   time.Duration
	frameType uint8
	hexInput  bool
}

func sendCmd(g *globalFlags) *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "send <payload>...",
		Short: "Send payloads as frames and print the replies",
		Long: `Send each argument as one frame and wait for the reply with the same header.

The first header byte is --type; the remaining header bytes carry a
sequence number, so the server's replies can be matched to requests.
A layout without a header cannot be correlated; frames are then sent
without waiting.

Examples:
  framer send hello world
  framer send --addr=ws://localhost:7001/ws ping
  framer send --hex 00ff10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			f.codec.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if f.addr == "" {
				f.addr = "tcp://" + dialAddress(cfg.Server.TCPAddress)
			}
			return runSend(cmd, cfg, &f, args)
		},
	}

	f.codec.register(cmd)
	cmd.Flags().StringVarP(&f.addr, "addr", "a", "", "Server address: tcp://host:port or ws://host:port/ws (default from config)")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", 5*time.Second, "How long to wait for each reply")
	cmd.Flags().Uint8Var(&f.frameType, "type", 1, "First header byte")
	cmd.Flags().BoolVar(&f.hexInput, "hex", false, "Payloads are hex encoded")

	return cmd
}

// dialAddress turns a listen address such as ":7000" into a dialable one.
func dialAddress(listen string) string {
	if len(listen) > 0 && listen[0] == ':' {
		return "localhost" + listen
	}
	return listen
}

func runSend(cmd *cobra.Command, cfg *config.Config, f *sendFlags, args []string) error {
	payloads := make([][]byte, len(args))
	for i, arg := range args {
		if !f.hexInput {
			payloads[i] = []byte(arg)
			continue
		}
		p, err := hex.DecodeString(arg)
		if err != nil {
			return errors.New("FR203").Wrap(err).WithDetail(fmt.Sprintf("Argument %d is not hex", i+1))
		}
		payloads[i] = p
	}

	opts, err := cfg.FramingOptions()
	if err != nil {
		return errors.New("FR103").Wrap(err)
	}
	factory, err := framing.NewFactory(opts...)
	if err != nil {
		return errors.New("FR103").Wrap(err)
	}
	layout := factory.Layout()

	ctx := cmd.Context()
	dialCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	c, err := client.Dial(dialCtx, f.addr,
		client.WithFactory(factory),
		client.WithTimeout(f.timeout),
		client.WithUnmatchedHandler(func(frame framing.Frame) {
			printReply(cmd, layout, -1, frame)
		}))
	if err != nil {
		return errors.New("FR302").Wrap(err).WithDetail("Could not connect to " + f.addr)
	}
	defer c.Close()

	for i, payload := range payloads {
		header := requestHeader(layout, f.frameType, uint64(i+1))

		if layout.HeaderOffset == 0 {
			if err := c.Send(header, payload); err != nil {
				return errors.New("FR302").Wrap(err)
			}
			continue
		}

		reply, err := c.Request(ctx, header, payload)
		if err != nil {
			if stderrors.Is(err, correlate.ErrTimeout) {
				return errors.New("FR303").
					WithDetail(fmt.Sprintf("No reply to request %d within %s", i+1, f.timeout))
			}
			return errors.New("FR302").Wrap(err)
		}
		printReply(cmd, layout, i+1, reply)
	}

	if layout.HeaderOffset == 0 {
		// Give unsolicited replies a moment to arrive before closing.
		select {
		case <-time.After(f.timeout):
		case <-c.Done():
		}
	}
	return nil
}

// requestHeader builds a header of layout.HeaderOffset bytes: the frame type
// followed by seq, big-endian, in whatever room is left.
func requestHeader(layout protocol.Layout, frameType uint8, seq uint64) []byte {
	header := make([]byte, layout.HeaderOffset)
	if len(header) == 0 {
		return header
	}
	header[0] = frameType
	for i := len(header) - 1; i > 0 && seq > 0; i-- {
		header[i] = byte(seq)
		seq >>= 8
	}
	return header
}

func printReply(cmd *cobra.Command, layout protocol.Layout, seq int, frame framing.Frame) {
	header, payload, err := layout.Split(frame)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "malformed reply: %v\n", err)
		return
	}
	label := fmt.Sprintf("#%d", seq)
	if seq < 0 {
		label = "push"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s header=%s payload=%q\n", label, hex.EncodeToString(header), payload)
}
