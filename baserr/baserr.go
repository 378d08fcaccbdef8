// Package baserr defines the BASP error taxonomy (spec §7): a small set
// of comparable kinds, wrapped with context via github.com/pkg/errors so
// callers get both a stable kind to branch on and a human-readable chain
// of causes.
package baserr

import "github.com/pkg/errors"

// Kind is one of the error taxonomy entries from spec §7. Kinds are
// compared by value, never by string, so wrapping with extra context
// never breaks a caller's dispatch logic.
type Kind int

const (
	// Unknown is returned by KindOf for errors this package didn't produce.
	Unknown Kind = iota
	// ProtocolError covers malformed frames, duplicate direct connections,
	// and unexpected handshake ordering.
	ProtocolError
	// DisconnectDuringHandshake is surfaced to a pending connect caller
	// whose connection closed before the peer's server handshake arrived.
	DisconnectDuringHandshake
	// ConnectionTimeout fires when last_seen exceeds the configured
	// connection timeout.
	ConnectionTimeout
	// RemoteLinkUnreachable bounces a request whose route disappeared
	// while it was in flight.
	RemoteLinkUnreachable
	// BindFailure surfaces a failed listen attempt to the publish caller.
	BindFailure
	// CannotConnect surfaces a failed socket connect to the connect caller.
	CannotConnect
	// NoActorPublishedAtPort is returned when unpublish names a mismatched actor.
	NoActorPublishedAtPort
	// ActorUnknown is the terminal reason used when a proxy is erased with
	// no more specific cause.
	ActorUnknown
)

func (k Kind) String() string {
	switch k {
	case ProtocolError:
		return "protocol_error"
	case DisconnectDuringHandshake:
		return "disconnect_during_handshake"
	case ConnectionTimeout:
		return "connection_timeout"
	case RemoteLinkUnreachable:
		return "remote_link_unreachable"
	case BindFailure:
		return "bind_failure"
	case CannotConnect:
		return "cannot_connect"
	case NoActorPublishedAtPort:
		return "no_actor_published_at_port"
	case ActorUnknown:
		return "unknown"
	default:
		return "unknown_kind"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap attaches kind and a message to an existing error, preserving it
// as the cause chain (errors.Cause/errors.Unwrap both keep working).
func Wrap(kind Kind, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(cause, message)}
}

// KindOf walks err's cause chain looking for a kind this package
// attached. Returns Unknown if none is found.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Unknown
}

// Is reports whether err (or any error in its chain) was created with
// the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
