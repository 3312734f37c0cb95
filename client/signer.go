package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// Signer holds an Ed25519 keypair identifying an attesting caller.
// The attester identity recorded by the ledger is the hex public key.
type Signer struct {
	privKey ed25519.PrivateKey // privKey is the Ed25519 private key
	pubKey  ed25519.PublicKey  // pubKey is the Ed25519 public key
}

// NewSigner creates a signer with a fresh random keypair.
func NewSigner() *Signer {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)

	return &Signer{privKey: priv, pubKey: pub}
}

// LoadSigner loads a signer key from file, generating and saving a new one
// if the file does not exist.
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s := NewSigner()

		if err := os.WriteFile(path, s.privKey, 0600); err != nil {
			return nil, fmt.Errorf("save key to %s:\n%w", path, err)
		}

		return s, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	priv := ed25519.PrivateKey(data)

	return &Signer{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Identity returns the attester identity: the hex-encoded public key.
func (s *Signer) Identity() string {
	return hex.EncodeToString(s.pubKey)
}

// signAttest signs the canonical attest request and returns the hex signature.
func (s *Signer) signAttest(sessionID, scoreHash string) string {
	digest := buildAttestDigest(sessionID, scoreHash)
	sig := ed25519.Sign(s.privKey, digest[:])

	return hex.EncodeToString(sig)
}

// buildAttestDigest computes the blake3 digest of the canonical attest
// request: u32 LE length-prefixed session id followed by u32 LE
// length-prefixed score hash.
// Must match the server's attestDigest construction exactly.
func buildAttestDigest(sessionID, scoreHash string) [32]byte {
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

// ComputeScoreHash computes the canonical SHA-256 digest of a score payload,
// in the form "sha256:<hex>". The payload is serialized as canonical JSON
// (object keys sorted, no whitespace) so the same payload always hashes the
// same regardless of field order. The ledger stores the result opaquely.
func ComputeScoreHash(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload:\n%w", err)
	}

	// Round-trip through a generic value: encoding/json sorts map keys,
	// which canonicalizes the object regardless of the input type.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("canonicalize payload:\n%w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("marshal canonical payload:\n%w", err)
	}

	digest := sha256.Sum256(canonical)

	return "sha256:" + hex.EncodeToString(digest[:]), nil
}
