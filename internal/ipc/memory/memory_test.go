package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
)

func newTransport(t *testing.T, depth int) *Transport {
	t.Helper()
	return New(NewNamespace(), t.Name(), depth)
}

func TestAttachBeforeCreate(t *testing.T) {
	tr := newTransport(t, 4)

	_, err := tr.Attach()
	assert.ErrorIs(t, err, ipc.ErrNotFound)
}

func TestCreateTwice(t *testing.T) {
	tr := newTransport(t, 4)

	_, err := tr.Create()
	require.NoError(t, err)

	_, err = tr.Create()
	assert.ErrorIs(t, err, ipc.ErrExists)
}

func TestCreateStartsZeroedAndUnlocked(t *testing.T) {
	tr := newTransport(t, 4)
	set, err := tr.Create()
	require.NoError(t, err)

	count, err := set.Accumulator.Load()
	require.NoError(t, err)
	assert.Zero(t, count)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, set.Lock.Acquire(ctx))
	require.NoError(t, set.Lock.Release())
}

func TestChannelFIFO(t *testing.T) {
	tr := newTransport(t, 8)
	owner, err := tr.Create()
	require.NoError(t, err)
	consumer, err := tr.Attach()
	require.NoError(t, err)

	ctx := context.Background()
	for _, n := range []uint64{3, 1, 2} {
		require.NoError(t, owner.Channel.Send(ctx, ipc.Work(n)))
	}
	require.NoError(t, owner.Channel.Send(ctx, ipc.Stop()))

	var got []uint64
	for {
		msg, err := consumer.Channel.Receive(ctx)
		require.NoError(t, err)
		if msg.IsStop() {
			break
		}
		got = append(got, msg.ChunkSize)
	}
	assert.Equal(t, []uint64{3, 1, 2}, got)
}

func TestSendBlocksWhenFull(t *testing.T) {
	tr := newTransport(t, 1)
	set, err := tr.Create()
	require.NoError(t, err)

	require.NoError(t, set.Channel.Send(context.Background(), ipc.Work(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = set.Channel.Send(ctx, ipc.Work(2))
	assert.ErrorIs(t, err, ipc.ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendWithRoomIgnoresDoneContext(t *testing.T) {
	tr := newTransport(t, 2)
	set, err := tr.Create()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the free slot wins over the cancelled context every time
	for i := 0; i < 100; i++ {
		require.NoError(t, set.Channel.Send(ctx, ipc.Stop()))
		_, err := set.Channel.Receive(context.Background())
		require.NoError(t, err)
	}

	require.NoError(t, set.Channel.Send(ctx, ipc.Stop()))
	require.NoError(t, set.Channel.Send(ctx, ipc.Stop()))
	assert.ErrorIs(t, set.Channel.Send(ctx, ipc.Stop()), ipc.ErrInterrupted)
}

func TestReceiveAfterRemove(t *testing.T) {
	tr := newTransport(t, 4)
	_, err := tr.Create()
	require.NoError(t, err)
	worker, err := tr.Attach()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := worker.Channel.Receive(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, tr.Remove())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ipc.ErrRemoved)
	case <-time.After(time.Second):
		t.Fatal("receive did not observe removal")
	}

	_, err = tr.Attach()
	assert.ErrorIs(t, err, ipc.ErrNotFound)
}

func TestRemoveIdempotent(t *testing.T) {
	tr := newTransport(t, 4)
	_, err := tr.Create()
	require.NoError(t, err)

	assert.NoError(t, tr.Remove())
	assert.NoError(t, tr.Remove())
}

func TestReleaseWithoutAcquire(t *testing.T) {
	tr := newTransport(t, 4)
	set, err := tr.Create()
	require.NoError(t, err)

	assert.ErrorIs(t, set.Lock.Release(), ipc.ErrNotHeld)
}

func TestMergeUnderContention(t *testing.T) {
	tr := newTransport(t, 4)
	owner, err := tr.Create()
	require.NoError(t, err)

	const (
		goroutines = 32
		perG       = 500
	)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := tr.Attach()
			if !assert.NoError(t, err) {
				return
			}
			for j := 0; j < perG; j++ {
				_, err := ipc.Merge(context.Background(), set.Lock, set.Accumulator, 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	count, err := owner.Accumulator.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perG), count)
}
