// catpack unpacks and repacks the container archive format into a directory
// tree plus a JSON metadata manifest.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catpack",
		Short: "Unpack and repack container archives",
		Long:  "catpack walks a container archive's tree of headers and file-blocks, extracting its payloads and texture atlases to a directory, or repacking a previously extracted directory back into a byte-faithful archive.",
	}
	root.AddCommand(newExtractCmd())
	root.AddCommand(newPackCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
