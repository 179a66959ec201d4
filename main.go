package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

func main() {
	ctx, stop := interruptContext(context.Background(), slog.Default(), os.Exit)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err for the user and returns the process exit code.
func reportError(w io.Writer, err error) int {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Interrupted.")
		return interruptExitCode
	}

	fmt.Fprintf(w, "Error: %v\n", err)

	return 1
}
