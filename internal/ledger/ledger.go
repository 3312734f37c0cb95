package ledger

import (
	"errors"
	"fmt"
	"sync"

	"ScoreLedger/internal/logger"
	"ScoreLedger/internal/storage"
)

// ErrInvalidArgument is returned when a call violates a precondition.
// The store is left untouched.
var ErrInvalidArgument = errors.New("invalid argument")

// Storage key layout: attestation records under "a:" + session id,
// the write counter under the meta prefix.
var (
	prefixAttestation = []byte("a:")
	keyCount          = []byte("m:count")
)

// store is the subset of the storage layer the ledger uses.
type store interface {
	Get(key []byte) ([]byte, error)
	SetBatch(pairs []storage.KeyValue) error
	IteratePrefix(prefix []byte, fn func(key, value []byte) error) error
	ReplacePrefix(prefix []byte, pairs []storage.KeyValue) error
}

// Ledger is the attestation store: a durable mapping from session id to
// attestation record, plus a monotonic count of write operations. There is
// exactly one writer at a time; the mutex is the serializing host boundary.
type Ledger struct {
	db store // db is the underlying Pebble storage

	mu    sync.Mutex
	count uint64 // count mirrors the persisted write counter
}

// New opens a ledger over the given storage, loading the persisted write
// counter. A fresh store starts empty with the counter at zero.
func New(db *storage.Storage) (*Ledger, error) {
	raw, err := db.Get(keyCount)
	if err != nil {
		return nil, fmt.Errorf("load counter:\n%w", err)
	}

	count, err := decodeCount(raw)
	if err != nil {
		return nil, fmt.Errorf("decode counter:\n%w", err)
	}

	return &Ledger{db: db, count: count}, nil
}

// Attest records an attestation for the given session. The score hash is
// stored as supplied; timestamp and attester come from the call context.
// A later write for the same session fully replaces the earlier record,
// and the counter increments on every successful call, overwrites included.
// The record and the counter commit in a single atomic batch.
func (l *Ledger) Attest(ctx CallContext, sessionID, scoreHash string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session_id cannot be empty", ErrInvalidArgument)
	}

	if scoreHash == "" {
		return fmt.Errorf("%w: score_hash cannot be empty", ErrInvalidArgument)
	}

	record := Attestation{
		ScoreHash: scoreHash,
		Timestamp: ctx.Timestamp(),
		Attester:  ctx.Caller(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pairs := []storage.KeyValue{
		{Key: makeKey(sessionID), Value: encodeAttestation(record)},
		{Key: keyCount, Value: encodeCount(l.count + 1)},
	}

	if err := l.db.SetBatch(pairs); err != nil {
		return fmt.Errorf("commit attestation:\n%w", err)
	}

	l.count++

	logger.Info("attestation stored",
		"session", sessionID,
		"hash", scoreHash,
		"attester", record.Attester,
	)

	return nil
}

// Verify looks up the attestation for a session. Returns a copy of the
// record and true if present, or the zero value and false if absent.
// Pure read, no side effects.
func (l *Ledger) Verify(sessionID string) (Attestation, bool) {
	raw, err := l.db.Get(makeKey(sessionID))
	if err != nil {
		logger.Error("attestation read failed", "session", sessionID, "error", err)
		return Attestation{}, false
	}

	if raw == nil {
		return Attestation{}, false
	}

	record, err := decodeAttestation(raw)
	if err != nil {
		logger.Error("malformed attestation record", "session", sessionID, "error", err)
		return Attestation{}, false
	}

	return record, true
}

// AttestationCount returns the total number of successful write operations.
// Overwrites count; this is a count of writes, not of distinct sessions.
func (l *Ledger) AttestationCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// makeKey builds the storage key for a session: "a:" + session id bytes.
func makeKey(sessionID string) []byte {
	key := make([]byte, len(prefixAttestation)+len(sessionID))
	copy(key, prefixAttestation)
	copy(key[len(prefixAttestation):], sessionID)

	return key
}
