package main

import (
	"fmt"
	"os"

	"github.com/itchio/headway/united"
	"github.com/itchio/screw"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/quayside/sluice"
)

func signatureCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signature BASIS SIGNATURE",
		Short: "Compute the block signature of BASIS and write it to SIGNATURE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}

			s, err := sluice.SignatureFile(cfg, args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := screw.Create(args[1])
			if err != nil {
				return errors.WithStack(err)
			}

			n, err := s.WriteTo(out)
			if err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return errors.WithStack(err)
			}

			fmt.Fprintf(os.Stderr, "wrote %s signature to %s\n", united.FormatBytes(n), args[1])
			return nil
		},
	}
}
