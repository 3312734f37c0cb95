package integration

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ScoreLedger/client"
	"ScoreLedger/internal/api"
	"ScoreLedger/internal/ledger"
	"ScoreLedger/internal/storage"
)

// startNode brings up a full node (storage + ledger + HTTP API) on a test
// listener and returns its address in host:port form.
func startNode(t *testing.T) (string, *ledger.Ledger) {
	t.Helper()

	dir, err := os.MkdirTemp("", "e2e_ledger_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		os.RemoveAll(dir)
	})

	db, err := storage.New(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	l, err := ledger.New(db)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}

	server := httptest.NewServer(api.New(":0", l).Handler())
	t.Cleanup(server.Close)

	return strings.TrimPrefix(server.URL, "http://"), l
}

func TestEndToEndAttestFlow(t *testing.T) {
	addr, _ := startNode(t)

	c := client.NewClient(addr)
	signer := client.NewSigner()

	// Fresh node: nothing recorded
	count, err := c.AttestationCount()
	if err != nil {
		t.Fatalf("AttestationCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}

	info, err := c.Verify("sess-1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if info != nil {
		t.Fatal("expected absent for fresh node")
	}

	// Hash a score payload locally and attest it
	scoreHash, err := client.ComputeScoreHash(map[string]any{
		"session_id":    "sess-1",
		"overall_score": 0.86,
		"tier":          "Expert",
	})
	if err != nil {
		t.Fatalf("ComputeScoreHash failed: %v", err)
	}

	if err := c.Attest(signer, "sess-1", scoreHash); err != nil {
		t.Fatalf("Attest failed: %v", err)
	}

	info, err = c.Verify("sess-1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if info == nil {
		t.Fatal("expected attestation after Attest")
	}

	if info.ScoreHash != scoreHash {
		t.Errorf("expected hash %s, got %s", scoreHash, info.ScoreHash)
	}

	if info.Attester != signer.Identity() {
		t.Errorf("expected attester %s, got %s", signer.Identity(), info.Attester)
	}

	if info.Timestamp == 0 {
		t.Error("expected node-assigned timestamp")
	}

	count, err = c.AttestationCount()
	if err != nil {
		t.Fatalf("AttestationCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestEndToEndOverwrite(t *testing.T) {
	addr, _ := startNode(t)

	c := client.NewClient(addr)
	first := client.NewSigner()
	second := client.NewSigner()

	if err := c.Attest(first, "sess-1", "sha256:aaaa"); err != nil {
		t.Fatalf("Attest failed: %v", err)
	}

	if err := c.Attest(second, "sess-1", "sha256:bbbb"); err != nil {
		t.Fatalf("Attest failed: %v", err)
	}

	info, err := c.Verify("sess-1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// Last write wins, earlier record irrecoverable
	if info.ScoreHash != "sha256:bbbb" || info.Attester != second.Identity() {
		t.Errorf("unexpected record after overwrite: %+v", info)
	}

	// Counter counts writes, not sessions
	count, err := c.AttestationCount()
	if err != nil {
		t.Fatalf("AttestationCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestEndToEndRejection(t *testing.T) {
	addr, _ := startNode(t)

	c := client.NewClient(addr)
	signer := client.NewSigner()

	if err := c.Attest(signer, "", "somehash"); err == nil {
		t.Error("expected error for empty session id")
	}

	if err := c.Attest(signer, "session", ""); err == nil {
		t.Error("expected error for empty score hash")
	}

	count, err := c.AttestationCount()
	if err != nil {
		t.Fatalf("AttestationCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected calls must not count, got %d", count)
	}
}

func TestEndToEndSnapshotRestore(t *testing.T) {
	srcAddr, _ := startNode(t)
	dstAddr, dstLedger := startNode(t)

	c := client.NewClient(srcAddr)
	signer := client.NewSigner()

	if err := c.Attest(signer, "sess-1", "sha256:cccc"); err != nil {
		t.Fatalf("Attest failed: %v", err)
	}

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if err := dstLedger.ImportSnapshot(snap); err != nil {
		t.Fatalf("ImportSnapshot failed: %v", err)
	}

	info, err := client.NewClient(dstAddr).Verify("sess-1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if info == nil || info.ScoreHash != "sha256:cccc" {
		t.Errorf("restored node missing record: %+v", info)
	}
}
