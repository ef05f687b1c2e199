//go:build !unix

package control

import "os"

// Only Ctrl+C exists here; pause and resume come from the status API.
var signalActions = map[os.Signal]Action{
	os.Interrupt: ActionTerminate,
}
