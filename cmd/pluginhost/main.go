// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is the pluginhost command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/samber/oops"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := cmd.Execute(); err != nil {
		printHint(os.Stderr, err)
		os.Exit(1)
	}
}

// printHint writes the oops hint of err, if any, after cobra's error line.
func printHint(w io.Writer, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Hint() == "" {
		return
	}
	fmt.Fprintln(w, "hint:", oopsErr.Hint()) //nolint:errcheck // best effort on exit
}
