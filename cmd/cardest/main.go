// Command cardest featurizes SQL count queries for learned cardinality
// estimation.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/cardest/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	// Commands report their own failures; usage errors from cobra are not.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
