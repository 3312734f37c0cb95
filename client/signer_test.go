package client

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeebo/blake3"
)

// TestBuildAttestDigest verifies the canonical layout:
// u32 LE len + session id + u32 LE len + score hash, hashed with blake3.
func TestBuildAttestDigest(t *testing.T) {
	sessionID := "sess-1"
	scoreHash := "abc123"

	got := buildAttestDigest(sessionID, scoreHash)

	buf := make([]byte, 0, 4+len(sessionID)+4+len(scoreHash))
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(sessionID)))
	buf = append(buf, lenBuf...)
	buf = append(buf, sessionID...)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(scoreHash)))
	buf = append(buf, lenBuf...)
	buf = append(buf, scoreHash...)

	want := blake3.Sum256(buf)
	if got != want {
		t.Errorf("digest mismatch: got %x, want %x", got, want)
	}
}

// TestBuildAttestDigestUnambiguous verifies that length prefixes prevent
// boundary-shift collisions between session id and score hash.
func TestBuildAttestDigestUnambiguous(t *testing.T) {
	a := buildAttestDigest("ab", "c")
	b := buildAttestDigest("a", "bc")

	if a == b {
		t.Error("shifted boundary must not produce the same digest")
	}
}

func TestSignAttestVerifiable(t *testing.T) {
	s := NewSigner()

	sigHex := s.signAttest("sess-1", "abc123")

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}

	pub, err := hex.DecodeString(s.Identity())
	if err != nil {
		t.Fatalf("identity is not hex: %v", err)
	}

	digest := buildAttestDigest("sess-1", "abc123")
	if !ed25519.Verify(pub, digest[:], sig) {
		t.Error("signature does not verify against identity")
	}
}

func TestLoadSignerRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "signer_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "key")

	first, err := LoadSigner(path)
	if err != nil {
		t.Fatalf("LoadSigner (generate) failed: %v", err)
	}

	second, err := LoadSigner(path)
	if err != nil {
		t.Fatalf("LoadSigner (load) failed: %v", err)
	}

	if first.Identity() != second.Identity() {
		t.Error("reloaded signer has a different identity")
	}
}

func TestLoadSignerInvalidKeySize(t *testing.T) {
	dir, err := os.MkdirTemp("", "signer_bad_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "key")
	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := LoadSigner(path); err == nil {
		t.Error("expected error for truncated key file")
	}
}

func TestComputeScoreHashDeterministic(t *testing.T) {
	payload := map[string]any{
		"session_id":    "test-session-001",
		"overall_score": 0.86,
		"tier":          "Expert",
	}

	first, err := ComputeScoreHash(payload)
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	second, err := ComputeScoreHash(payload)
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	if first != second {
		t.Error("same payload must hash identically")
	}

	if !strings.HasPrefix(first, "sha256:") {
		t.Errorf("expected sha256: prefix, got %s", first)
	}

	if len(first) != len("sha256:")+64 {
		t.Errorf("expected 64 hex digits, got %s", first)
	}
}

// TestComputeScoreHashFieldOrder verifies canonicalization: a struct and a
// map with the same fields hash the same regardless of declaration order.
func TestComputeScoreHashFieldOrder(t *testing.T) {
	type payload struct {
		Tier  string  `json:"tier"`
		Score float64 `json:"overall_score"`
	}

	fromStruct, err := ComputeScoreHash(payload{Tier: "Expert", Score: 0.86})
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	fromMap, err := ComputeScoreHash(map[string]any{
		"overall_score": 0.86,
		"tier":          "Expert",
	})
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	if fromStruct != fromMap {
		t.Errorf("field order changed the hash: %s vs %s", fromStruct, fromMap)
	}
}

func TestComputeScoreHashDifferentPayloads(t *testing.T) {
	a, err := ComputeScoreHash(map[string]any{"score": 1})
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	b, err := ComputeScoreHash(map[string]any{"score": 2})
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	if a == b {
		t.Error("different payloads must hash differently")
	}
}
