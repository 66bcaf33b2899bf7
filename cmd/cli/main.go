package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shotforge/shotforge/internal/app"
	"github.com/shotforge/shotforge/internal/cli"
	"github.com/shotforge/shotforge/internal/mapping"
)

// main is the entrypoint for the shotforge application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical startup errors, so we recover here to
	// provide a clean exit message to the user.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	shotforgeApp := app.NewApp(outW, appConfig, nil)
	defer shotforgeApp.Close()

	err = shotforgeApp.Run(context.Background())

	// A failed mapping preflight carries its own exit code so scripts can
	// distinguish it from an infrastructure failure.
	var preflightErr *app.PreflightError
	if errors.As(err, &preflightErr) {
		return &cli.ExitError{Code: mapping.ExitCodeMissingCapability, Message: preflightErr.Error()}
	}
	return err
}
