// Command statfetch downloads and loads government statistical datasets.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/statfetch/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()

	// Commands report their own failures; anything else is a usage error
	// cobra returned before a command ran.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(cli.GetExitCode(err))
}
