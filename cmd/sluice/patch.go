package main

import (
	"fmt"
	"io"
	"os"

	"github.com/itchio/screw"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/quayside/sluice"
)

func patchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patch BASIS DELTA OUT",
		Short: "Apply DELTA to BASIS, writing the reconstructed file to OUT",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig()
			if err != nil {
				return err
			}

			delta, err := readFile(args[1])
			if err != nil {
				return err
			}

			if err := sluice.PatchFile(cfg, delta, args[0], args[2]); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "reconstructed %s\n", args[2])
			return nil
		},
	}
}

func readFile(path string) ([]byte, error) {
	f, err := screw.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}
