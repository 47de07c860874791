// Command querylift translates query models into HQL and checks
// translation scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/querylift/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
