package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/goopsie/catpack/internal/progress"
	"github.com/goopsie/catpack/pkg/container"
	"github.com/goopsie/catpack/pkg/manifest"
	"github.com/goopsie/catpack/pkg/stream"
)

type packOptions struct {
	out string
}

func newPackCmd() *cobra.Command {
	opts := &packOptions{}
	cmd := &cobra.Command{
		Use:   "pack <dir>",
		Short: "Repack a directory tree plus metadata.json into a container archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.out, "out", "", "output archive path")
	cmd.MarkFlagRequired("out")
	return cmd
}

func runPack(dir string, opts *packOptions) error {
	root, err := manifest.Load(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return err
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return fmt.Errorf("catpack: create %s: %w", opts.out, err)
	}
	defer f.Close()

	w, err := stream.NewWriter(f)
	if err != nil {
		return err
	}

	log := progress.New()
	log.Update("packing %s", dir)
	if err := container.NewPacker(w, opts.out, dir).Pack(root); err != nil {
		return err
	}
	log.Done("packed %s -> %s", dir, opts.out)
	return nil
}
