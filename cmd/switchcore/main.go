// Command switchcore runs the interbank funds-transfer lifecycle engine:
// either every worker as one supervised process (serve) or a single
// worker role for independent scaling (worker <name>).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags.
var Version = "dev"

func main() {
	app := &cli.Command{
		Name:    "switchcore",
		Version: Version,
		Usage:   "interbank funds-transfer lifecycle engine",
		Commands: []*cli.Command{
			serveCmd,
			workerCmd,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
