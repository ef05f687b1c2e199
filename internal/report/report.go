// Package report renders the coordinator's output: the parameter banner, the
// final estimate in the classic text layout, or the full result as JSON.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
)

// Format selects how a result is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown report format")

// Banner writes the run parameters the way the coordinator announces them.
func Banner(w io.Writer, cfg coordinator.Config) error {
	_, err := fmt.Fprintf(w, "M=%d, N=%d, C=%d, S=%d\n", cfg.Workers, cfg.Trials, cfg.ChunkSize, cfg.SeedBase)
	return err
}

// Document is the JSON form of a result.
type Document struct {
	RunID          string             `json:"run_id"`
	Transport      string             `json:"transport"`
	Workers        int                `json:"workers"`
	Trials         int64              `json:"trials"`
	ChunkSize      int64              `json:"chunk_size"`
	SeedBase       int64              `json:"seed_base"`
	Hits           int64              `json:"hits"`
	Estimate       float64            `json:"estimate"`
	StdErr         float64            `json:"std_err"`
	Confidence     float64            `json:"confidence"`
	IntervalLow    float64            `json:"interval_low"`
	IntervalHigh   float64            `json:"interval_high"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	AbnormalExits  int                `json:"abnormal_exits"`
	Exits          []coordinator.Exit `json:"exits"`
}

// NewDocument flattens a result into its JSON form.
func NewDocument(r *coordinator.Result, confidence float64) Document {
	abnormal := 0
	for _, e := range r.Exits {
		if e.Outcome != coordinator.OutcomeClean {
			abnormal++
		}
	}
	exits := r.Exits
	if exits == nil {
		exits = []coordinator.Exit{}
	}
	return Document{
		RunID:          r.RunID,
		Transport:      r.Transport,
		Workers:        r.Workers,
		Trials:         r.Trials,
		ChunkSize:      r.ChunkSize,
		SeedBase:       r.SeedBase,
		Hits:           r.Hits,
		Estimate:       r.Summary.Pi,
		StdErr:         r.Summary.StdErr,
		Confidence:     confidence,
		IntervalLow:    r.Summary.Low,
		IntervalHigh:   r.Summary.High,
		ElapsedSeconds: r.Elapsed.Seconds(),
		AbnormalExits:  abnormal,
		Exits:          exits,
	}
}
