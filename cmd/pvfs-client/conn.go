package main

import (
	"fmt"
	"net"
	"os"
)

// dialServer opens a TCP connection to one cluster server and returns
// its duplicated file descriptor, satisfying internal/rpc/uringtp.Conn
// (which only needs Fd() uintptr — *os.File already implements it).
// The real wire protocol spoken over that fd is out of scope (spec.md
// Non-goals "no RPC transport reimplementation of the real wire
// protocol"); uringtp only needs something queueable with io_uring.
func dialServer(addr string) (*os.File, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("dial %s: not a TCP connection", addr)
	}

	f, err := tc.File()
	if err != nil {
		return nil, fmt.Errorf("dial %s: duplicate fd: %w", addr, err)
	}
	return f, nil
}
