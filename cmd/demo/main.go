// Command demo narrates order book scenarios step by step. It runs the
// built in scenarios unless --scenarios names a YAML file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/server"
)

func main() {
	fs := pflag.NewFlagSet("demo", pflag.ExitOnError)
	file := fs.String("scenarios", "", "YAML scenario file (defaults to the built in scenarios)")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	checkInvariants := fs.Bool("check-invariants", true, "Verify book invariants after every step")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	_ = fs.Parse(os.Args[1:])

	logging.Setup(logging.Config{Level: *logLevel, Pretty: true, Output: os.Stderr})

	data := defaultScenarios
	if *file != "" {
		var err error
		if data, err = os.ReadFile(*file); err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to read scenarios")
		}
	}

	script, err := ParseScript(data)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid scenario script")
	}

	narrator := NewNarrator(os.Stdout, script.BookInstrument(), !*noColor,
		server.WithInvariantChecks(*checkInvariants))
	if err := narrator.RunAll(context.Background(), script); err != nil {
		fmt.Fprintf(os.Stderr, "\n%v\n", err)
		os.Exit(1)
	}
}
