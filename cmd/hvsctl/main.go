package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/veridian/hvs/cmd/hvsctl/cmd"
	"github.com/veridian/hvs/pkg/clierror"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var cliErr *clierror.CLIError
		if errors.As(err, &cliErr) {
			clierror.PrintError(cliErr, cmd.OutputFormat())
			os.Exit(cliErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(clierror.ExitGeneral)
	}
}
