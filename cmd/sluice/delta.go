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

func deltaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delta SIGNATURE NEW DELTA",
		Short: "Compute a delta from SIGNATURE to NEW and write it to DELTA",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}

			handle, err := loadSignatureFile(cfg, args[0])
			if err != nil {
				return err
			}
			defer handle.Release()

			s, err := sluice.DeltaFile(cfg, handle, args[1])
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := screw.Create(args[2])
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

			fmt.Fprintf(os.Stderr, "wrote %s delta to %s\n", united.FormatBytes(n), args[2])
			return nil
		},
	}
}

func loadSignatureFile(cfg sluice.Config, path string) (*sluice.SignatureHandle, error) {
	f, err := screw.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	return sluice.LoadSignature(cfg, f)
}
