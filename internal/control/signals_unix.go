//go:build unix

package control

import (
	"os"
	"syscall"
)

var signalActions = map[os.Signal]Action{
	os.Interrupt:    ActionTerminate,
	syscall.SIGTERM: ActionTerminate,
	syscall.SIGUSR1: ActionPause,
	syscall.SIGUSR2: ActionResume,
}
