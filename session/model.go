package session

// Session defines a public type used by clipauth APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	UserID   string
	Username string

	RotationCount uint32
	RefreshHash   [32]byte

	CreatedAt int64
	ExpiresAt int64
}
