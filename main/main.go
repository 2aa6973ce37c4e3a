// Copyright (C) 2019-2025, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ava-labs/throttling/config"
)

const usage = `Usage: ` + config.AppName + ` <command> [flags]

Commands:
  validate  check that the throttle definitions resolve for both routers
  price     quote the congestion price of holding or renewing units
  serve     restore persisted usage and serve the throttles over HTTP
`

var errUnknownCommand = errors.New("unknown command")

// main is the primary entry point to throttlectl.
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "validate":
		return exitCode(stderr, runValidate(args, stdout))
	case "price":
		return exitCode(stderr, runPrice(args, stdout))
	case "serve":
		return runServe(args, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "%s: %q\n\n%s", errUnknownCommand, cmd, usage)
		return 2
	}
}

func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "%s: %s\n", config.AppName, err)
	return 1
}
