package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	assert.NotEqual(t, gen.Generate(), gen.Generate())
}

func TestTypedIDs(t *testing.T) {
	runID := NewRunID()
	workerID := NewWorkerID()

	assert.True(t, strings.HasPrefix(runID.String(), "run_"), runID)
	assert.True(t, strings.HasPrefix(workerID.String(), "wkr_"), workerID)

	_, err := ulid.Parse(strings.TrimPrefix(runID.String(), "run_"))
	assert.NoError(t, err)
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	runID := NewRunID()

	ts, err := Timestamp(runID.String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("run_not-a-ulid")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	const count = 200

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, count)
		wg   sync.WaitGroup
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.GenerateWithPrefix(WorkerPrefix)
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, count)
}
