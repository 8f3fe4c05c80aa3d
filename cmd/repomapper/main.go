// repomapper generates a token-budgeted repository map for LLM context.
package main

import (
	"os"

	"github.com/repomapper/repomapper/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
