// Command timecat serves and maintains session recording logs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/timecat/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
