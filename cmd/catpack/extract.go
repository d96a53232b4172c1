package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"

	"github.com/goopsie/catpack/internal/progress"
	"github.com/goopsie/catpack/pkg/container"
	"github.com/goopsie/catpack/pkg/manifest"
	"github.com/goopsie/catpack/pkg/stream"
)

type extractOptions struct {
	outDir string
}

func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <input>",
		Short: "Unpack a container archive into a directory tree plus metadata.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.outDir, "out", "", "output directory (default: input path with its extension stripped)")
	return cmd
}

func runExtract(input string, opts *extractOptions) error {
	outDir := opts.outDir
	if outDir == "" {
		outDir = strings.TrimSuffix(input, filepath.Ext(input))
	}
	preexisting := true
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		preexisting = false
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("catpack: create %s: %w", outDir, err)
	}

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("catpack: open %s: %w", input, err)
	}
	defer f.Close()

	// Archives can run into the hundreds of megabytes; map the file once and
	// let the codec seek within memory instead of issuing a syscall per seek.
	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("catpack: mmap %s: %w", input, err)
	}
	defer mapped.Unmap()

	r, err := stream.NewReader(bytes.NewReader(mapped))
	if err != nil {
		return err
	}

	log := progress.New()
	log.Update("unpacking %s", input)
	root, err := container.NewUnpacker(r, input, outDir).Unpack()
	if err != nil {
		if !preexisting {
			os.RemoveAll(outDir)
		}
		return err
	}
	log.Done("unpacked %s -> %s", input, outDir)

	return manifest.Save(filepath.Join(outDir, "metadata.json"), root)
}
