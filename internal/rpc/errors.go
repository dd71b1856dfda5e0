package rpc

import "errors"

// ErrDaemonUnavailable indicates the gluetube daemon could not be reached
// at its configured socket path.
var ErrDaemonUnavailable = errors.New("daemon unavailable")
