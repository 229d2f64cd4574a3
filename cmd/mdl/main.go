package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/specialistvlad/mudyla/internal/app"
	"github.com/specialistvlad/mudyla/internal/cli"
)

// main is the entrypoint for the mdl binary.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitUserError)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	opts, invocations, err := cli.Parse(args)
	if err != nil {
		return err
	}

	mdlApp, err := app.New(outW, opts, invocations)
	if err != nil {
		return err
	}

	// SIGINT cancels the run; the scheduler drains and the process exits
	// with the cancellation code.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return mdlApp.Run(ctx)
}
