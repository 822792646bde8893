//go:build windows

package lifecycle

import "os"

func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// Windows has no user signals; the panic entry point is control-channel only.
func PanicSignals() []os.Signal {
	return nil
}
