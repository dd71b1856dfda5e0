package rpc

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ctomkow/gluetube/internal/errs"
)

// DefaultDialTimeout bounds how long a one-shot Call waits to connect.
const DefaultDialTimeout = 5 * time.Second

// Call dials socketPath, writes one frame, and closes the connection. The
// protocol is one-way fire-and-forget per spec.md §6: success is simply
// "no error here and no error logged daemon-side". dialRPC resolves to a
// Unix-domain-socket dial on unix platforms and a localhost TCP dial
// (address discovered from socketPath's endpoint file) on Windows.
func Call(socketPath, method string, params ...any) error {
	frame, err := Encode(method, params...)
	if err != nil {
		return &errs.RPCError{Op: "call", Err: err}
	}

	conn, err := dialRPC(socketPath, DefaultDialTimeout)
	if err != nil {
		return &errs.RPCError{Op: "call", Err: fmt.Errorf("dialing %s: %w", socketPath, err)}
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		return &errs.RPCError{Op: "call", Err: fmt.Errorf("writing frame: %w", err)}
	}
	return nil
}

// CallWithRetry is Call wrapped in an exponential backoff, used by the
// runner's own stage-report callbacks (spec.md §4.6: "these writes must be
// tolerant of the pipeline outliving the runner") and by autodiscovery,
// both of which are ordinary RPC clients of this same daemon and can hit
// the socket mid-restart.
func CallWithRetry(socketPath, method string, params ...any) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(func() error {
		return Call(socketPath, method, params...)
	}, b)
}
