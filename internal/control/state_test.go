package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	s := New()

	assert.False(t, s.Paused())
	assert.False(t, s.Terminating())

	assert.True(t, s.Pause())
	assert.False(t, s.Pause(), "second pause is a no-op")
	assert.True(t, s.Paused())

	assert.True(t, s.Resume())
	assert.False(t, s.Resume())
	assert.False(t, s.Paused())

	assert.True(t, s.Terminate())
	assert.False(t, s.Terminate())
	assert.True(t, s.Terminating())

	// terminating is sticky
	assert.False(t, s.Pause())
	assert.False(t, s.Resume())
	assert.True(t, s.Terminating())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Terminate")
	}
}

func TestParseAndApply(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "pause"},
		{name: "resume"},
		{name: "terminate"},
		{name: "restart", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAction(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Action(tt.name), a)
		})
	}

	_, err := New().Apply("restart")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestOnChange(t *testing.T) {
	s := New()

	var mu sync.Mutex
	var got []Action
	s.OnChange(func(a Action) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	})

	s.Pause()
	s.Pause()
	s.Resume()
	s.Terminate()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Action{ActionPause, ActionResume, ActionTerminate}, got)
}

func TestChangedClosesOnTransition(t *testing.T) {
	s := New()
	ch := s.Changed()

	s.Pause()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Changed not closed")
	}
	assert.NotEqual(t, ch, s.Changed())
}

func TestWaitWhilePausedReturnsImmediately(t *testing.T) {
	assert.NoError(t, New().WaitWhilePaused(context.Background()))
}

func TestWaitWhilePausedBlocksUntilResume(t *testing.T) {
	s := New()
	s.Pause()

	done := make(chan error, 1)
	go func() { done <- s.WaitWhilePaused(context.Background()) }()

	select {
	case <-done:
		t.Fatal("returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	s.Resume()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("still waiting after resume")
	}
}

func TestWaitWhilePausedTerminate(t *testing.T) {
	s := New()
	s.Pause()

	done := make(chan error, 1)
	go func() { done <- s.WaitWhilePaused(context.Background()) }()

	s.Terminate()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTerminated)
	case <-time.After(time.Second):
		t.Fatal("still waiting after terminate")
	}
}

func TestWaitWhilePausedContext(t *testing.T) {
	s := New()
	s.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.WaitWhilePaused(ctx), context.DeadlineExceeded)
}

func TestInterruptible(t *testing.T) {
	s := New()

	ctx, cancel := s.Interruptible(context.Background())
	defer cancel()
	assert.NoError(t, ctx.Err())

	s.Pause()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by pause")
	}

	paused, cancelPaused := s.Interruptible(context.Background())
	defer cancelPaused()
	assert.Error(t, paused.Err(), "already paused")
}

func TestInterruptibleFollowsParent(t *testing.T) {
	s := New()
	parent, cancelParent := context.WithCancel(context.Background())

	ctx, cancel := s.Interruptible(parent)
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
}
