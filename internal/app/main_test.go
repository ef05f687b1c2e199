package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
)

// workerRoleEnv makes the test binary behave as monteworker, so process tests
// can spawn it as their worker binary.
const workerRoleEnv = "MONTE_APP_TEST_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(workerRoleEnv) == "1" {
		os.Exit(runTestWorker())
	}
	os.Exit(m.Run())
}

func runTestWorker() int {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <seed>\n", os.Args[0])
		return 1
	}
	seed, err := strconv.ParseInt(os.Args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid seed %q: %v\n", os.Args[1], err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := RunWorker(context.Background(), cfg, seed); err != nil {
		fmt.Fprintf(os.Stderr, "worker %d: %v\n", seed, err)
		return 1
	}
	return 0
}
