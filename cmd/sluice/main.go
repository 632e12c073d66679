// Command sluice computes signatures, deltas and patches in the rsync
// style, locally or across a TCP connection.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/itchio/headway/state"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quayside/sluice"
	"github.com/quayside/sluice/engine"
)

var rootFlags struct {
	bufferSize int
	block      uint32
	strong     uint32
	format     string
	verbose    bool
}

func main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}

	root := &cobra.Command{
		Use:           "sluice",
		Short:         "rsync-style incremental file synchronization",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addConfigFlags(root.PersistentFlags())

	root.AddCommand(
		signatureCommand(),
		deltaCommand(),
		patchCommand(),
		serveCommand(),
		pushCommand(),
	)

	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}

func addConfigFlags(flags *pflag.FlagSet) {
	flags.IntVar(&rootFlags.bufferSize, "buffer", 0, "buffer size in bytes (0 = default)")
	flags.Uint32Var(&rootFlags.block, "block", 0, "signature block length (0 = auto)")
	flags.Uint32Var(&rootFlags.strong, "strong", 0, "strong hash length (0 = full)")
	flags.StringVar(&rootFlags.format, "format", "", "signature format: blake2 or md4")
	flags.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "print debug messages")
}

func buildConfig() (sluice.Config, error) {
	var format engine.Magic
	switch rootFlags.format {
	case "", "blake2":
		format = sluice.FormatBlake2
	case "md4":
		format = sluice.FormatMD4
	default:
		return sluice.Config{}, fmt.Errorf("unknown format %q", rootFlags.format)
	}

	cfg := sluice.Config{
		BufferSize:   rootFlags.bufferSize,
		BlockLength:  rootFlags.block,
		StrongLength: rootFlags.strong,
		Format:       format,
		Consumer:     newConsumer(),
	}
	return cfg, cfg.Validate()
}

func newConsumer() *state.Consumer {
	return &state.Consumer{
		OnMessage: func(level string, msg string) {
			if level == "debug" && !rootFlags.verbose {
				return
			}
			switch level {
			case "warning":
				color.New(color.FgYellow).Fprintf(os.Stderr, "%s\n", msg)
			default:
				fmt.Fprintf(os.Stderr, "%s\n", msg)
			}
		},
	}
}
