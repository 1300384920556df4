//go:build windows

package lifecycle

import "os"

// TerminationSignals is Ctrl-C only; Windows delivers no SIGTERM.
func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
