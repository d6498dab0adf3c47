package transport

import (
	"errors"
	"fmt"
)

// Auto-start failure modes. A child process dying before its first healthy
// probe and the attempt budget running out are distinct conditions and are
// reported separately.
var (
	ErrServerStartupTimeout = errors.New("server startup timeout")
	ErrServerExited         = errors.New("server process exited before becoming healthy")
)

// RemoteError means the server was reached but the requested tool failed;
// the message is passed through from the server.
type RemoteError struct {
	Tool    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote tool %q failed: %s", e.Tool, e.Message)
}

// TransportError means the server could not be reached at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
