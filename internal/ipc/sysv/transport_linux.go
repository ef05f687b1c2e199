//go:build linux && (amd64 || arm64)

package sysv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/MonteIPC/internal/ipc"
)

// Transport is the System V ipc.Transport.
type Transport struct {
	opts Options

	mu      sync.Mutex
	shmID   int
	semID   int
	msgID   int
	removed bool
}

// New returns a transport for the resources keyed by opts.
func New(opts Options) *Transport {
	return &Transport{opts: opts.withDefaults(), shmID: -1, semID: -1, msgID: -1}
}

// Name identifies the backend.
func (t *Transport) Name() string { return "sysv" }

type keys struct{ shm, sem, msg int }

func (t *Transport) keys() (keys, error) {
	var k keys
	var err error
	if k.shm, err = Ftok(t.opts.KeyPath, t.opts.ShmID); err != nil {
		return k, err
	}
	if k.sem, err = Ftok(t.opts.KeyPath, t.opts.SemID); err != nil {
		return k, err
	}
	if k.msg, err = Ftok(t.opts.KeyPath, t.opts.MsgID); err != nil {
		return k, err
	}
	return k, nil
}

// Create makes the segment, semaphore and queue. A resource left over from a
// crashed run under the same key is removed and recreated; if the segment is
// still attached by a live run, Create fails with ipc.ErrExists and touches
// nothing.
func (t *Transport) Create() (*ipc.Set, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.opts.KeyPath, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close key file: %w", err)
	}

	k, err := t.keys()
	if err != nil {
		return nil, err
	}

	attached, err := shmAttached(k.shm)
	if err != nil {
		return nil, fmt.Errorf("inspect shared memory: %w", err)
	}
	if attached > 0 {
		return nil, fmt.Errorf("%w: segment for %s is attached by %d processes", ipc.ErrExists, t.opts.KeyPath, attached)
	}

	flags := ipcCreat | ipcExcl | int(t.opts.Mode)
	t.removed = false

	t.shmID, err = t.createFresh("shm", func() (int, error) { return unix.SysvShmGet(k.shm, taskBytes, flags) },
		func() (int, error) { return unix.SysvShmGet(k.shm, 0, 0) }, removeShm)
	if err != nil {
		return nil, t.rollback(fmt.Errorf("shmget: %w", err))
	}

	t.semID, err = t.createFresh("sem", func() (int, error) { return semget(k.sem, 1, flags) },
		func() (int, error) { return semget(k.sem, 0, 0) }, removeSem)
	if err != nil {
		return nil, t.rollback(fmt.Errorf("semget: %w", err))
	}
	if err := semctl(t.semID, 0, semSetVal, 1); err != nil {
		return nil, t.rollback(fmt.Errorf("semctl SETVAL: %w", err))
	}

	t.msgID, err = t.createFresh("msg", func() (int, error) { return msgget(k.msg, flags) },
		func() (int, error) { return msgget(k.msg, 0) }, removeMsg)
	if err != nil {
		return nil, t.rollback(fmt.Errorf("msgget: %w", err))
	}

	set, err := t.open(t.shmID, t.semID, t.msgID)
	if err != nil {
		return nil, t.rollback(err)
	}
	if err := set.Accumulator.Store(0); err != nil {
		set.Close()
		return nil, t.rollback(err)
	}
	return set, nil
}

// shmAttached returns the attach count of the segment under key, 0 if there is
// none.
func shmAttached(key int) (uint64, error) {
	id, err := unix.SysvShmGet(key, 0, 0)
	if errors.Is(err, unix.ENOENT) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var desc unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(id, unix.IPC_STAT, &desc); err != nil {
		if isGone(err) {
			return 0, nil
		}
		return 0, err
	}
	return uint64(desc.Nattch), nil
}

func (t *Transport) createFresh(resource string, create, lookup func() (int, error), remove func(int) error) (int, error) {
	id, err := create()
	if !errors.Is(err, unix.EEXIST) {
		return id, err
	}

	stale, err := lookup()
	if err != nil {
		return -1, err
	}
	if err := remove(stale); err != nil {
		return -1, fmt.Errorf("remove stale %s %d: %w", resource, stale, err)
	}
	if t.opts.OnStale != nil {
		t.opts.OnStale(resource, stale)
	}
	return create()
}

// rollback removes whatever Create made before failing. Called with mu held.
func (t *Transport) rollback(cause error) error {
	if err := t.removeLocked(); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

// Attach opens resources created by another process.
func (t *Transport) Attach() (*ipc.Set, error) {
	k, err := t.keys()
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: key file %s", ipc.ErrNotFound, t.opts.KeyPath)
		}
		return nil, err
	}

	shmID, err := unix.SysvShmGet(k.shm, 0, 0)
	if err != nil {
		return nil, lookupError("shared memory", err)
	}
	semID, err := semget(k.sem, 0, 0)
	if err != nil {
		return nil, lookupError("semaphore", err)
	}
	msgID, err := msgget(k.msg, 0)
	if err != nil {
		return nil, lookupError("message queue", err)
	}
	return t.open(shmID, semID, msgID)
}

func lookupError(resource string, err error) error {
	if errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("%w: %s", ipc.ErrNotFound, resource)
	}
	if errors.Is(err, unix.EIDRM) {
		return fmt.Errorf("%w: %s", ipc.ErrRemoved, resource)
	}
	return fmt.Errorf("%s: %w", resource, err)
}

func (t *Transport) open(shmID, semID, msgID int) (*ipc.Set, error) {
	data, err := unix.SysvShmAttach(shmID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("shmat: %w", lookupError("shared memory", err))
	}
	if len(data) < taskBytes {
		unix.SysvShmDetach(data)
		return nil, fmt.Errorf("shared memory segment too small: %d bytes", len(data))
	}

	acc := &accumulator{value: (*int64)(unsafe.Pointer(&data[0]))}
	lk := &semLock{id: semID, poll: t.opts.PollInterval}
	ch := &queue{id: msgID, poll: t.opts.PollInterval}

	return ipc.NewSet(acc, lk, ch, func() error {
		acc.value = nil
		return unix.SysvShmDetach(data)
	}), nil
}

// Remove destroys the resources this transport created. Every removal is tried
// even if an earlier one fails; later calls are no-ops.
func (t *Transport) Remove() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked()
}

func (t *Transport) removeLocked() error {
	if t.removed {
		return nil
	}
	t.removed = true

	var errs []error
	if t.shmID != -1 {
		errs = append(errs, ignoreGone(removeShm(t.shmID), "shm"))
		t.shmID = -1
	}
	if t.semID != -1 {
		errs = append(errs, ignoreGone(removeSem(t.semID), "sem"))
		t.semID = -1
	}
	if t.msgID != -1 {
		errs = append(errs, ignoreGone(removeMsg(t.msgID), "msg"))
		t.msgID = -1
	}
	return errors.Join(errs...)
}

func removeShm(id int) error {
	_, err := unix.SysvShmCtl(id, ipcRmid, nil)
	return err
}

func removeSem(id int) error { return semctl(id, 0, ipcRmid, 0) }

func removeMsg(id int) error { return msgctl(id, ipcRmid) }

func ignoreGone(err error, resource string) error {
	if err == nil || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EIDRM) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", resource, err)
}

func isGone(err error) bool {
	return errors.Is(err, unix.EIDRM) || errors.Is(err, unix.EINVAL)
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ipc.ErrInterrupted, ctx.Err())
}

// pause sleeps for d unless ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return interrupted(ctx)
	}
}

type accumulator struct {
	value *int64
}

func (a *accumulator) Add(delta int64) error {
	if a.value == nil {
		return ipc.ErrRemoved
	}
	atomic.AddInt64(a.value, delta)
	return nil
}

func (a *accumulator) Load() (int64, error) {
	if a.value == nil {
		return 0, ipc.ErrRemoved
	}
	return atomic.LoadInt64(a.value), nil
}

func (a *accumulator) Store(v int64) error {
	if a.value == nil {
		return ipc.ErrRemoved
	}
	atomic.StoreInt64(a.value, v)
	return nil
}

// semLock waits in semtimedop slices of poll so ctx is observed between them.
// SEM_UNDO returns the permit if the holder dies.
type semLock struct {
	id   int
	poll time.Duration
	held atomic.Bool
}

func (l *semLock) Acquire(ctx context.Context) error {
	op := sembuf{num: 0, op: -1, flg: semUndo}
	for {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		ts := unix.NsecToTimespec(l.poll.Nanoseconds())
		err := semtimedop(l.id, &op, &ts)
		switch {
		case err == nil:
			l.held.Store(true)
			return nil
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		case isGone(err):
			return ipc.ErrRemoved
		default:
			return fmt.Errorf("semtimedop: %w", err)
		}
	}
}

func (l *semLock) Release() error {
	if !l.held.CompareAndSwap(true, false) {
		return ipc.ErrNotHeld
	}
	op := sembuf{num: 0, op: 1, flg: semUndo}
	for {
		err := semtimedop(l.id, &op, nil)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case isGone(err):
			return ipc.ErrRemoved
		default:
			return fmt.Errorf("semop: %w", err)
		}
	}
}

// queue polls the message queue with IPC_NOWAIT so that a worker never takes a
// message after it has been paused or asked to terminate.
type queue struct {
	id   int
	poll time.Duration
}

func (q *queue) Send(ctx context.Context, msg ipc.TaskMessage) error {
	buf := taskBuf{mtype: msgTypeTask}
	if !msg.IsStop() {
		buf.tosses = int64(msg.ChunkSize)
	}
	for {
		err := msgsnd(q.id, &buf, ipcNowait)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			if ctx.Err() != nil {
				return interrupted(ctx)
			}
		case errors.Is(err, unix.EAGAIN):
			if err := pause(ctx, q.poll); err != nil {
				return err
			}
		case isGone(err):
			return ipc.ErrRemoved
		default:
			return fmt.Errorf("msgsnd: %w", err)
		}
	}
}

func (q *queue) Receive(ctx context.Context) (ipc.TaskMessage, error) {
	var buf taskBuf
	for {
		if ctx.Err() != nil {
			return ipc.TaskMessage{}, interrupted(ctx)
		}
		err := msgrcv(q.id, &buf, msgTypeTask, ipcNowait)
		switch {
		case err == nil:
			if buf.tosses <= 0 {
				return ipc.Stop(), nil
			}
			return ipc.Work(uint64(buf.tosses)), nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ENOMSG):
			if err := pause(ctx, q.poll); err != nil {
				return ipc.TaskMessage{}, err
			}
		case isGone(err):
			return ipc.TaskMessage{}, ipc.ErrRemoved
		default:
			return ipc.TaskMessage{}, fmt.Errorf("msgrcv: %w", err)
		}
	}
}
