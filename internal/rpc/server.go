package rpc

import (
	"net"
	"time"
)

// ListenRPC binds the daemon's listening endpoint at socketPath: a Unix
// domain socket on unix platforms, or a loopback TCP listener whose
// address is recorded in socketPath's endpoint file on Windows.
func ListenRPC(socketPath string) (net.Listener, error) {
	return listenRPC(socketPath)
}

// EndpointExists reports whether socketPath already names a bound
// endpoint, stale or live.
func EndpointExists(socketPath string) bool {
	return endpointExists(socketPath)
}

// DialTimeout dials the daemon's endpoint directly, bypassing the
// fire-and-forget frame helpers in Call, for callers that want a raw
// connection.
func DialTimeout(socketPath string, timeout time.Duration) (net.Conn, error) {
	return dialRPC(socketPath, timeout)
}
