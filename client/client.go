// Package client is a Go SDK for a ScoreLedger node. Callers compute the
// score hash locally (see ComputeScoreHash), sign attest requests with an
// Ed25519 key, and verify stored attestations by session id.
package client

import (
	"fmt"
)

// Client connects to a ScoreLedger node via HTTP.
type Client struct {
	nodeAddr string // nodeAddr is the HTTP address (e.g. "127.0.0.1:8080")
}

// AttestationInfo holds a stored attestation as returned by the node.
type AttestationInfo struct {
	SessionID string `json:"session_id"` // SessionID names the attested session
	ScoreHash string `json:"score_hash"` // ScoreHash is the recorded payload digest
	Timestamp uint64 `json:"timestamp"`  // Timestamp is epoch nanoseconds at write time
	Attester  string `json:"attester"`   // Attester is the recording caller's identity
}

// NewClient creates a client for the node at the given HTTP address.
func NewClient(nodeAddr string) *Client {
	return &Client{nodeAddr: nodeAddr}
}

// Attest records an attestation binding sessionID to scoreHash, signed by
// the given signer. The node stamps the record with its own clock and the
// signer's identity.
func (c *Client) Attest(signer *Signer, sessionID, scoreHash string) error {
	body := map[string]string{
		"session_id": sessionID,
		"score_hash": scoreHash,
		"attester":   signer.Identity(),
		"signature":  signer.signAttest(sessionID, scoreHash),
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}

	if err := httpPostJSON("http://"+c.nodeAddr+"/attest", body, &resp); err != nil {
		return fmt.Errorf("attest:\n%w", err)
	}

	return nil
}

// Verify fetches the attestation for a session. Returns nil if no
// attestation exists for the session id.
func (c *Client) Verify(sessionID string) (*AttestationInfo, error) {
	var info AttestationInfo

	url := "http://" + c.nodeAddr + "/attestation/" + sessionID

	err := httpGet(url, &info)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("verify:\n%w", err)
	}

	return &info, nil
}

// AttestationCount returns the node's total write count.
func (c *Client) AttestationCount() (uint64, error) {
	var resp struct {
		Count uint64 `json:"count"`
	}

	if err := httpGet("http://"+c.nodeAddr+"/count", &resp); err != nil {
		return 0, fmt.Errorf("get count:\n%w", err)
	}

	return resp.Count, nil
}

// Snapshot downloads a compressed backup of the node's ledger.
func (c *Client) Snapshot() ([]byte, error) {
	data, err := httpGetBytes("http://" + c.nodeAddr + "/snapshot")
	if err != nil {
		return nil, fmt.Errorf("get snapshot:\n%w", err)
	}

	return data, nil
}
