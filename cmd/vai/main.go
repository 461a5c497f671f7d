// Command vai is the external CLI surface over the container/codec/
// compositor core: `encode` turns a frame source into a .vai file,
// `decode` inspects one, dumps it to PNGs, or previews it in a window.
// Neither subcommand is part of the decoder core itself (spec.md
// §6.3-6.4): both are thin wiring over internal/container,
// internal/encoder, and internal/compositor.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Missing .env is not an error: AWS credentials for s3:// addressing
	// are optional unless actually used.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "vai",
		Short:         "Encode and decode .vai sprite-timeline video containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEncodeCmd())
	root.AddCommand(newDecodeCmd())
	root.AddCommand(newCacheCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vai:", err)
		os.Exit(1)
	}
}
