package main

import (
	"fmt"
	"os"

	"github.com/pablasso/etp/internal/cli"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/tui"
	"github.com/pablasso/etp/internal/version"
)

func main() {
	res, err := parseArgs(os.Args[1:])
	switch {
	case errors.Is(err, errUseCLI):
		// Subcommands and their flags belong to the command-line interface
		if err := cli.Execute(); err != nil {
			os.Exit(1)
		}
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	case res.ShowHelp:
		fmt.Print(res.HelpText)
	case res.ShowVersion:
		fmt.Println(version.String())
	default:
		if err := tui.Run(res.Options); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
