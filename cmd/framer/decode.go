package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/framer/internal/config"
	"github.com/vango-dev/framer/internal/errors"
	"github.com/vango-dev/framer/pkg/framing"
	"github.com/vango-dev/framer/pkg/protocol"
)

type codecFlags struct {
	headerOffset int
	lengthField  string
	byteOrder    string
}

func (f *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.headerOffset, "header-offset", 0, "Bytes before the length field (default from config, 2)")
	cmd.Flags().StringVar(&f.lengthField, "length-field", "", `Length field: "1", "2", "4" or "varint" (default from config, "2")`)
	cmd.Flags().StringVar(&f.byteOrder, "byte-order", "", `Byte order of fixed-width lengths: "big" or "little"`)
}

// apply lets explicitly set flags override the configuration file.
func (f *codecFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("header-offset") {
		cfg.Codec.HeaderOffset = f.headerOffset
	}
	if flags.Changed("length-field") {
		cfg.Codec.LengthField = f.lengthField
	}
	if flags.Changed("byte-order") {
		cfg.Codec.ByteOrder = f.byteOrder
	}
}

func decodeCmd(g *globalFlags) *cobra.Command {
	var (
		codec    codecFlags
		chunk    int
		format   string
		hexInput bool
	)

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Split a byte stream into frames",
		Long: `Read a byte stream from a file or stdin and print every complete frame.

The input is fed to a decoder in chunks of --chunk bytes, the way a
network connection would deliver it. Bytes left over at the end are
reported as an incomplete frame.

Archived sessions (<prefix><session-id>.frames) can be replayed this way.

Examples:
  framer decode capture.bin
  framer decode --chunk=3 --format=payload capture.bin
  echo "0100000568656c6c6f" | framer decode --hex`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			codec.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			in := cmd.InOrStdin()
			name := "stdin"
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return errors.New("FR202").Wrap(err)
				}
				defer f.Close()
				in, name = f, args[0]
			}

			if hexInput {
				data, err := readHex(in)
				if err != nil {
					return err
				}
				in = bytes.NewReader(data)
			}

			return runDecode(cmd, cfg, in, name, chunk, format)
		},
	}

	codec.register(cmd)
	cmd.Flags().IntVar(&chunk, "chunk", 4096, "Chunk size fed to the decoder")
	cmd.Flags().StringVarP(&format, "format", "f", "summary", "Output: summary, hex, payload or raw")
	cmd.Flags().BoolVar(&hexInput, "hex", false, "Input is hex text (whitespace ignored)")

	return cmd
}

// readHex decodes hex text, ignoring whitespace.
func readHex(r io.Reader) ([]byte, error) {
	text, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.New("FR202").Wrap(err)
	}
	clean := strings.Join(strings.Fields(string(text)), "")
	data, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errors.New("FR203").Wrap(err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, cfg *config.Config, in io.Reader, name string, chunk int, format string) error {
	if chunk <= 0 {
		return errors.New("FR201").
			WithDetail(fmt.Sprintf("--chunk must be positive, got %d", chunk))
	}
	switch format {
	case "summary", "hex", "payload", "raw":
	default:
		return errors.New("FR201").
			WithDetail("Unknown format " + format).
			WithSuggestion("Use summary, hex, payload or raw")
	}

	opts, err := cfg.FramingOptions()
	if err != nil {
		return errors.New("FR103").Wrap(err)
	}
	// A file has no idle time between chunks; staleness does not apply.
	opts = append(opts, framing.WithExpire(24*time.Hour))

	var discarded []string
	opts = append(opts, framing.WithObserver(discardRecorder(func(reason framing.DiscardReason, n int) {
		discarded = append(discarded, fmt.Sprintf("%d bytes (%s)", n, reason))
	})))

	factory, err := framing.NewFactory(opts...)
	if err != nil {
		return errors.New("FR103").Wrap(err)
	}
	d := factory.Create()
	layout := factory.Layout()

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()

	buf := make([]byte, chunk)
	count, total := 0, 0
	for {
		n, err := io.ReadFull(in, buf)
		if n > 0 {
			for _, frame := range d.Drain(buf[:n]) {
				if err := printFrame(out, layout, count, frame, format); err != nil {
					return err
				}
				count++
				total += len(frame)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return errors.New("FR202").Wrap(err)
		}
	}

	if format == "raw" {
		return nil
	}
	fmt.Fprintf(out, "%s: %d frames, %d bytes\n", name, count, total)
	for _, msg := range discarded {
		fmt.Fprintf(out, "discarded %s\n", msg)
	}
	if rest := d.Buffered(); rest > 0 {
		fmt.Fprintf(out, "incomplete frame: %d bytes left over\n", rest)
	}
	return nil
}

func printFrame(w io.Writer, layout protocol.Layout, i int, frame framing.Frame, format string) error {
	header, payload, err := layout.Split(frame)
	if err != nil {
		return err
	}

	switch format {
	case "raw":
		_, err = w.Write(frame)
	case "hex":
		_, err = fmt.Fprintf(w, "%s\n", hex.EncodeToString(frame))
	case "payload":
		_, err = fmt.Fprintf(w, "%s\n", payload)
	default:
		_, err = fmt.Fprintf(w, "#%d size=%d header=%s payload=%d\n",
			i, len(frame), hex.EncodeToString(header), len(payload))
	}
	return err
}

// discardRecorder adapts a function to a framing.Observer that only sees discards.
type discardRecorder func(reason framing.DiscardReason, bytes int)

func (discardRecorder) FrameDecoded(int, bool) {}

func (r discardRecorder) BufferDiscarded(reason framing.DiscardReason, bytes int) {
	r(reason, bytes)
}
