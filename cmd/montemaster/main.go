package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/GriffinCanCode/MonteIPC/internal/app"
	"github.com/GriffinCanCode/MonteIPC/internal/infrastructure/config"
	"github.com/GriffinCanCode/MonteIPC/internal/report"
)

func main() {
	// Parse flags
	workers := flag.Int("M", 1, "Number of worker processes")
	trials := flag.Int64("N", 1000000, "Total number of trials")
	chunk := flag.Int64("C", 100000, "Trials per task message")
	seed := flag.Int64("S", 1, "Seed base; worker i uses S+i")
	configFile := flag.String("config", "", "YAML or TOML config file")
	dev := flag.Bool("dev", false, "Development logging")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	transport := flag.String("transport", "", "IPC transport: sysv or memory")
	status := flag.String("status", "", "Status API listen address, e.g. 127.0.0.1:8080")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fail(err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "M":
			cfg.Run.Workers = *workers
		case "N":
			cfg.Run.Trials = *trials
		case "C":
			cfg.Run.ChunkSize = *chunk
		case "S":
			cfg.Run.SeedBase = *seed
		case "dev":
			cfg.Logging.Development = *dev
		case "transport":
			cfg.IPC.Transport = *transport
		case "status":
			cfg.Status.Addr = *status
		}
	})

	format := report.FormatText
	if *asJSON {
		format = report.FormatJSON
	}

	if err := app.RunMaster(context.Background(), cfg, format, os.Stdout); err != nil {
		fail(err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "montemaster: %v\n", err)
	os.Exit(1)
}
