package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/MonteIPC/internal/domain/coordinator"
	"github.com/GriffinCanCode/MonteIPC/internal/estimator"
)

func sampleResult() *coordinator.Result {
	return &coordinator.Result{
		RunID:     "run_01HZX",
		Transport: "memory",
		Workers:   2,
		Trials:    1000,
		ChunkSize: 100,
		SeedBase:  1,
		Hits:      785,
		Summary:   estimator.Summarize(785, 1000),
		Elapsed:   2500 * time.Millisecond,
		Exits: []coordinator.Exit{
			{ID: "101", Seed: 1, Outcome: coordinator.OutcomeClean},
			{ID: "102", Seed: 2, Outcome: coordinator.OutcomeAbnormal, Code: 1, Error: "exit status 1"},
		},
	}
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Banner(&buf, coordinator.Config{Workers: 4, Trials: 1000000, ChunkSize: 100000, SeedBase: 7}))

	assert.Equal(t, "M=4, N=1000000, C=100000, S=7\n", buf.String())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleResult()))

	assert.Equal(t, "Pi estimate: 3.140000\nElapsed time = 2 seconds\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResult()))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "run_01HZX", doc.RunID)
	assert.Equal(t, int64(785), doc.Hits)
	assert.InDelta(t, 3.14, doc.Estimate, 1e-9)
	assert.Equal(t, estimator.Confidence, doc.Confidence)
	assert.Less(t, doc.IntervalLow, doc.Estimate)
	assert.Greater(t, doc.IntervalHigh, doc.Estimate)
	assert.InDelta(t, 2.5, doc.ElapsedSeconds, 1e-9)
	assert.Equal(t, 1, doc.AbnormalExits)
	require.Len(t, doc.Exits, 2)
	assert.Equal(t, coordinator.OutcomeAbnormal, doc.Exits[1].Outcome)
}

func TestWriteJSONWithoutExits(t *testing.T) {
	r := sampleResult()
	r.Exits = nil

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r))
	assert.Contains(t, buf.String(), `"exits": []`)
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, "xml", sampleResult()), ErrUnknownFormat)
}
