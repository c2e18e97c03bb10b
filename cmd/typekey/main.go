// Command typekey encodes, decodes and stores composite keys.
package main

import (
	"os"

	"github.com/roach88/typekey/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
