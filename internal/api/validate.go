package api

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

const (
	// attesterSize is the expected size of an Ed25519 public key.
	attesterSize = 32

	// signatureSize is the expected size of an Ed25519 signature.
	signatureSize = 64
)

// validateAttest checks an attest request's structure and Ed25519 signature.
// Returns the caller identity (the hex attester key) on success. The score
// hash itself is deliberately not validated beyond non-emptiness; hash
// correctness is the caller's responsibility.
func validateAttest(req *attestRequest) (string, error) {
	if req.SessionID == "" {
		return "", fmt.Errorf("session_id cannot be empty")
	}

	if req.ScoreHash == "" {
		return "", fmt.Errorf("score_hash cannot be empty")
	}

	pubkey, err := hex.DecodeString(req.Attester)
	if err != nil || len(pubkey) != attesterSize {
		return "", fmt.Errorf("invalid attester key")
	}

	sig, err := hex.DecodeString(req.Signature)
	if err != nil || len(sig) != signatureSize {
		return "", fmt.Errorf("invalid signature encoding")
	}

	digest := attestDigest(req.SessionID, req.ScoreHash)

	if !ed25519.Verify(pubkey, digest[:], sig) {
		return "", fmt.Errorf("invalid signature")
	}

	return req.Attester, nil
}

// attestDigest computes the blake3 digest of the canonical attest request:
// u32 LE length-prefixed session id followed by u32 LE length-prefixed score
// hash. Must match the client's signing construction exactly.
func attestDigest(sessionID, scoreHash string) [32]byte {
	buf := make([]byte, 0, 4+len(sessionID)+4+len(scoreHash))

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(sessionID)))
	buf = append(buf, lenBuf...)
	buf = append(buf, sessionID...)

	binary.LittleEndian.PutUint32(lenBuf, uint32(len(scoreHash)))
	buf = append(buf, lenBuf...)
	buf = append(buf, scoreHash...)

	return blake3.Sum256(buf)
}
