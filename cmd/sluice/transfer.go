package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/itchio/headway/united"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/quayside/sluice"
	"github.com/quayside/sluice/framing"
	"github.com/quayside/sluice/stream"
)

// The transfer protocol is a single TCP exchange. The receiver sends the
// signature of its basis file as framed chunks followed by a zero-length
// frame, the sender replies with the delta the same way, and the receiver
// patches its basis into the output file.

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve ADDR BASIS OUT",
		Short: "Accept one transfer on ADDR, updating BASIS into OUT",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", args[0])
			if err != nil {
				return errors.WithStack(err)
			}
			defer ln.Close()
			fmt.Fprintf(os.Stderr, "listening on %s\n", ln.Addr())

			conn, err := ln.Accept()
			if err != nil {
				return errors.WithStack(err)
			}
			defer conn.Close()

			sig, err := sluice.SignatureFile(cfg, args[1])
			if err != nil {
				return err
			}
			if _, err := sendFramed(conn, sig); err != nil {
				return err
			}

			delta, err := recvFramed(conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "received %s delta\n", united.FormatBytes(int64(len(delta))))

			if err := sluice.PatchFile(cfg, delta, args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "reconstructed %s\n", args[2])
			return nil
		},
	}
}

func pushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push ADDR NEW",
		Short: "Send NEW to a waiting receiver at ADDR",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}

			conn, err := net.Dial("tcp", args[0])
			if err != nil {
				return errors.WithStack(err)
			}
			defer conn.Close()

			sigBytes, err := recvFramed(conn)
			if err != nil {
				return err
			}
			handle, err := sluice.LoadSignatureBytes(cfg, sigBytes)
			if err != nil {
				return err
			}
			defer handle.Release()

			delta, err := sluice.DeltaFile(cfg, handle, args[1])
			if err != nil {
				return err
			}
			n, err := sendFramed(conn, delta)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "sent %s delta\n", united.FormatBytes(n))
			return nil
		},
	}
}

// sendFramed frames every chunk of s onto w, then marks the end of the
// sequence with a zero-length frame.
func sendFramed(w io.Writer, s *stream.Stream) (int64, error) {
	n, err := framing.WriteStream(w, s)
	if err != nil {
		return n, err
	}
	if err := framing.NewWriter(w).WriteChunk(nil); err != nil {
		return n, err
	}
	return n, nil
}

// recvFramed concatenates frames until the peer's zero-length end marker.
func recvFramed(r io.Reader) ([]byte, error) {
	fr := framing.NewReader(r)
	var result []byte
	for {
		chunk, err := fr.ReadChunk()
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return result, nil
		}
		result = append(result, chunk...)
	}
}
