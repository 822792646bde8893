//go:build !windows

package lifecycle

import (
	"os"
	"syscall"
)

func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// PanicSignals are the out-of-process kill switch: receiving one stops all
// playback without terminating the process.
func PanicSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1}
}
