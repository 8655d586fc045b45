package chat

import "errors"

// ErrNoActiveUser is returned by Send before any username was activated.
// It never reaches the network.
var ErrNoActiveUser = errors.New("choose a username before sending")

// defaultStreamError is shown when the transport reports a failure without
// detail.
const defaultStreamError = "stream disconnected"
