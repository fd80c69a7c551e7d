package transport

import "errors"

var (
	// ErrHandshakeFailed means the session never opened: the credentials were
	// rejected, the endpoint was unreachable or the setup was refused.
	ErrHandshakeFailed = errors.New("live session handshake failed")
	// ErrUnreachable marks handshake failures where the remote could not be
	// reached at all, as opposed to having refused the session.
	ErrUnreachable = errors.New("live endpoint unreachable")
	// ErrTransport means an open session failed underneath.
	ErrTransport = errors.New("live session transport failed")
	// ErrClosed is returned when sending on a connection that is closed.
	ErrClosed = errors.New("live session closed")
)
