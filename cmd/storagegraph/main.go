package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matzehuels/storagegraph/internal/cli"
	sgerrors "github.com/matzehuels/storagegraph/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := cli.New(os.Stderr, cli.LogInfo)
	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error codes to exit statuses so scripts can tell a refused
// lock from a failed commit.
func exitCode(err error) int {
	switch sgerrors.GetCode(err) {
	case sgerrors.ErrCodeLocked:
		return 3
	case sgerrors.ErrCodeCommitFailure:
		return 4
	}
	return 1
}
