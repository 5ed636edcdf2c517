package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"autosplit/internal/services"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// An interrupted run already reported itself in the summary.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "autosplit:", err)
		}
		os.Exit(services.ExitCode(err))
	}
}
