// Command synthnet builds, validates and runs modular audio networks.
package main

import (
	"fmt"
	"os"

	// Registers the rtmidi driver used by play --midi-in.
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/roach88/synthnet/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "synthnet:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
