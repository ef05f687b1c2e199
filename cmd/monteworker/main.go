package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/GriffinCanCode/MonteIPC/internal/app"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <seed>\n", os.Args[0])
		os.Exit(1)
	}
	seed, err := strconv.ParseInt(os.Args[1], 10, 64)
	if err != nil {
		fail(fmt.Errorf("invalid seed %q: %w", os.Args[1], err))
	}

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	if err := app.RunWorker(context.Background(), cfg, seed); err != nil {
		if errors.Is(err, ipc.ErrNotFound) {
			fail(errors.New("resources not found"))
		}
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "monteworker: %v\n", err)
	os.Exit(1)
}
