package refresh

// Status defines a public type used by authcore APIs.
//
// Status instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Status uint8

const (
	// StatusActive is an exported constant or variable used by the authentication core.
	StatusActive Status = 0
	// StatusRotated is an exported constant or variable used by the authentication core.
	StatusRotated Status = 1
	// StatusRevoked is an exported constant or variable used by the authentication core.
	StatusRevoked Status = 2
)

// String describes the string operation and its observable behavior.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRotated:
		return "rotated"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Record defines a public type used by authcore APIs.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Record struct {
	TokenID  [16]byte
	FamilyID [16]byte

	Status     Status
	SecretHash [32]byte

	// ReplacedBy holds the successor token ID once the record is rotated.
	// All zeroes while the record is active.
	ReplacedBy [16]byte

	IssuedAt  int64
	ExpiresAt int64

	Subject  string
	ClientID string
}

// Replaced reports whether the record has a recorded successor.
func (r *Record) Replaced() bool {
	return r.ReplacedBy != [16]byte{}
}
