//go:build linux && (amd64 || arm64)

package sysv

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ipcCreat  = 0o1000
	ipcExcl   = 0o2000
	ipcNowait = 0o4000
	ipcRmid   = 0

	semSetVal = 16
	semUndo   = 0x1000

	msgTypeTask = 1
	taskBytes   = 8
)

type sembuf struct {
	num uint16
	op  int16
	flg int16
}

// taskBuf mirrors struct { long mtype; long long tosses; }.
type taskBuf struct {
	mtype  int64
	tosses int64
}

// Ftok derives a System V key from an existing file and a project id.
func Ftok(path string, projID int) (int, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return -1, &os.PathError{Op: "ftok", Path: path, Err: err}
	}
	key := uint32(st.Ino&0xffff) | uint32(st.Dev&0xff)<<16 | uint32(projID&0xff)<<24
	return int(int32(key)), nil
}

func semget(key, nsems, flag int) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), uintptr(nsems), uintptr(flag))
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func semctl(id, num, cmd, arg int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), uintptr(cmd), uintptr(arg), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// semtimedop applies one operation; a nil timeout blocks like semop(2).
func semtimedop(id int, op *sembuf, timeout *unix.Timespec) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMTIMEDOP, uintptr(id), uintptr(unsafe.Pointer(op)), 1, uintptr(unsafe.Pointer(timeout)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func msgget(key, flag int) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), uintptr(flag), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func msgsnd(id int, buf *taskBuf, flag int) error {
	_, _, errno := unix.Syscall6(unix.SYS_MSGSND, uintptr(id), uintptr(unsafe.Pointer(buf)), taskBytes, uintptr(flag), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func msgrcv(id int, buf *taskBuf, mtype int64, flag int) error {
	_, _, errno := unix.Syscall6(unix.SYS_MSGRCV, uintptr(id), uintptr(unsafe.Pointer(buf)), taskBytes, uintptr(mtype), uintptr(flag), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func msgctl(id, cmd int) error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), uintptr(cmd), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
