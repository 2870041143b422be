// Command signstage moves build DLLs into a staging directory for code
// signing and restores them afterwards.
package main

import (
	"os"

	"github.com/roach88/signstage/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:], os.Stdout, os.Stderr))
}
