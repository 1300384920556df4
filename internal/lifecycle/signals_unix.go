//go:build !windows

// Package lifecycle lists the signals that stop the server.
package lifecycle

import (
	"os"
	"syscall"
)

// TerminationSignals stops the HTTP server and tears down the active cast
// session on Ctrl-C or a service manager's SIGTERM.
func TerminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
