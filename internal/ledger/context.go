package ledger

// CallContext provides the ambient facts of a call: the time at which the
// host observed it and the identity of the calling principal. The ledger
// only consumes these; computing them is the host's job. Tests supply a
// fixed implementation to keep Attest deterministic.
type CallContext interface {
	// Timestamp returns the call time in nanoseconds since the Unix epoch.
	Timestamp() uint64

	// Caller returns the identity of the calling principal.
	Caller() string
}
