package report

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
	"github.com/GriffinCanCode/MonteIPC/internal/estimator"
)

// Write renders r in the requested format.
func Write(w io.Writer, format Format, r *coordinator.Result) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteText prints the estimate and the whole-second wall time.
func WriteText(w io.Writer, r *coordinator.Result) error {
	_, err := fmt.Fprintf(w, "Pi estimate: %f\nElapsed time = %d seconds\n", r.Summary.Pi, int64(r.Elapsed.Seconds()))
	return err
}

// WriteJSON prints the result as an indented JSON document.
func WriteJSON(w io.Writer, r *coordinator.Result) error {
	data, err := sonic.ConfigStd.MarshalIndent(NewDocument(r, estimator.Confidence), "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
