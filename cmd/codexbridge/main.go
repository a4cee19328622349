package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/codexbridge/internal/bridge"
	"github.com/ppiankov/codexbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var abortErr *cli.AbortedError
		switch {
		case errors.As(err, &abortErr):
			os.Exit(130)
		case errors.Is(err, bridge.ErrCodexNotFound), errors.Is(err, bridge.ErrCodexNotExecutable):
			os.Exit(2)
		}
		os.Exit(1)
	}
}
