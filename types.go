package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/sylvize/authcore/internal/audit"
)

// Strategy identifies which credential verification path [Engine.Login]
// takes for a given [Credential].
type Strategy uint8

const (
	// StrategyPassword is an exported constant or variable used by the authentication core.
	StrategyPassword Strategy = iota
	// StrategyExternal is an exported constant or variable used by the authentication core.
	StrategyExternal
	// StrategyBearer is an exported constant or variable used by the authentication core.
	StrategyBearer
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Strategy) String() string {
	switch s {
	case StrategyPassword:
		return "password"
	case StrategyExternal:
		return "external"
	case StrategyBearer:
		return "bearer"
	default:
		return "unknown"
	}
}

// Credential defines a public type used by authcore APIs.
//
// Credential instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// Exactly one variant payload is read, selected by Strategy: Identifier and
// Secret for StrategyPassword, Assertion for StrategyExternal, Token for
// StrategyBearer.
type Credential struct {
	Strategy   Strategy
	Identifier string
	Secret     string
	Assertion  string
	Token      string
}

// Identity defines a public type used by authcore APIs.
//
// Identity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Identity struct {
	Subject    string
	Attributes map[string]string
}

// TokenPair defines a public type used by authcore APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// PasswordRecord is the stored credential material returned by [UserStore].
// The hash string carries its own algorithm version and cost parameters.
type PasswordRecord struct {
	Subject      string
	Identifier   string
	PasswordHash string
	Disabled     bool
	Attributes   map[string]string
}

// UserStore is the interface callers implement to connect authcore to
// their user database. It covers credential lookup and hash migration;
// account lifecycle stays on the caller's side.
type UserStore interface {
	GetPasswordRecord(ctx context.Context, identifier string) (*PasswordRecord, error)
	SavePasswordRecord(ctx context.Context, subject string, newHash string) error
}

// IdentityMapper maps an externally verified assertion to a local
// [Identity]. The assertion has already been validated by the external
// provider; authcore treats it as an opaque, trusted handle.
type IdentityMapper interface {
	MapAssertion(ctx context.Context, assertion string) (*Identity, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
