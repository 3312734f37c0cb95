package ledger

import (
	"encoding/binary"
	"fmt"
)

// Attestation is a recorded claim binding a session identifier to a score
// hash, with provenance. Immutable once constructed.
type Attestation struct {
	ScoreHash string // ScoreHash is the caller-supplied payload digest
	Timestamp uint64 // Timestamp is nanoseconds since epoch at write time
	Attester  string // Attester is the calling principal's identity
}

// encodeAttestation serializes an attestation in Borsh format.
// Format: u32 len + score_hash bytes + u64 timestamp + u32 len + attester bytes,
// all little-endian.
func encodeAttestation(a Attestation) []byte {
	buf := make([]byte, 0, 4+len(a.ScoreHash)+8+4+len(a.Attester))

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(a.ScoreHash)))
	buf = append(buf, lenBuf...)
	buf = append(buf, a.ScoreHash...)

	tsBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(tsBuf, a.Timestamp)
	buf = append(buf, tsBuf...)

	binary.LittleEndian.PutUint32(lenBuf, uint32(len(a.Attester)))
	buf = append(buf, lenBuf...)
	buf = append(buf, a.Attester...)

	return buf
}

// decodeAttestation deserializes an attestation from Borsh format.
// Lengths are handled in int so declared sizes near MaxUint32 cannot
// wrap the bounds checks.
func decodeAttestation(data []byte) (Attestation, error) {
	var a Attestation

	if len(data) < 4 {
		return a, fmt.Errorf("attestation record too short: %d bytes", len(data))
	}

	hashLen := int(binary.LittleEndian.Uint32(data[0:4]))
	offset := 4

	if len(data)-offset < hashLen+8+4 {
		return a, fmt.Errorf("truncated attestation record")
	}

	a.ScoreHash = string(data[offset : offset+hashLen])
	offset += hashLen

	a.Timestamp = binary.LittleEndian.Uint64(data[offset : offset+8])
	offset += 8

	attesterLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if len(data)-offset < attesterLen {
		return a, fmt.Errorf("truncated attester field")
	}

	a.Attester = string(data[offset : offset+attesterLen])

	return a, nil
}

// encodeCount serializes the write counter as u64 little-endian.
func encodeCount(count uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, count)

	return buf
}

// decodeCount deserializes the write counter. Returns 0 for absent data.
func decodeCount(data []byte) (uint64, error) {
	if data == nil {
		return 0, nil
	}

	if len(data) != 8 {
		return 0, fmt.Errorf("invalid counter size: got %d, want 8", len(data))
	}

	return binary.LittleEndian.Uint64(data), nil
}
