package bridge

import "errors"

// ErrPTYStart is wrapped when the child command could not be attached to a
// pseudo-terminal at all.
var ErrPTYStart = errors.New("bridge: failed to start child in pty")

// ErrRawModeUnavailable is logged (not returned) when the host's stdin
// cannot be placed in raw mode, e.g. because it is not a real terminal;
// the orchestrator still runs, falling back to whatever line-buffering the
// host terminal already applies.
var ErrRawModeUnavailable = errors.New("bridge: host stdin does not support raw mode")
