package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"ScoreLedger/internal/logger"
	"ScoreLedger/internal/storage"
)

const (
	// snapshotVersion is the current snapshot format version.
	snapshotVersion = 1

	// checksumSize is the size of the blake3 snapshot checksum.
	checksumSize = 32
)

// ExportSnapshot serializes the entire ledger (all attestation records plus
// the write counter) into a zstd-compressed, checksummed blob. Entries appear
// in key order, so identical ledgers produce identical snapshots. This is an
// operator backup facility; it is not part of the attest/verify call surface.
func (l *Ledger) ExportSnapshot() ([]byte, error) {
	// Hold the write lock so records and counter are captured together
	l.mu.Lock()
	payload, err := l.buildSnapshotPayload(l.count)
	l.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("build snapshot:\n%w", err)
	}

	checksum := blake3.Sum256(payload)
	payload = append(payload, checksum[:]...)

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}
	defer encoder.Close()

	return encoder.EncodeAll(payload, nil), nil
}

// buildSnapshotPayload encodes the header and all records.
// Format: u32 version | u64 count | u32 numEntries | entries.
// Each entry: u32 len + session id bytes + u32 len + record bytes.
func (l *Ledger) buildSnapshotPayload(count uint64) ([]byte, error) {
	type entry struct {
		sessionID []byte
		record    []byte
	}

	var entries []entry

	err := l.db.IteratePrefix(prefixAttestation, func(key, value []byte) error {
		// Copy: iterator memory is invalid after the callback returns
		sid := make([]byte, len(key)-len(prefixAttestation))
		copy(sid, key[len(prefixAttestation):])

		rec := make([]byte, len(value))
		copy(rec, value)

		entries = append(entries, entry{sessionID: sid, record: rec})

		return nil
	})
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 16)
	lenBuf := make([]byte, 8)

	binary.LittleEndian.PutUint32(lenBuf[:4], snapshotVersion)
	buf = append(buf, lenBuf[:4]...)

	binary.LittleEndian.PutUint64(lenBuf, count)
	buf = append(buf, lenBuf...)

	binary.LittleEndian.PutUint32(lenBuf[:4], uint32(len(entries)))
	buf = append(buf, lenBuf[:4]...)

	for _, e := range entries {
		binary.LittleEndian.PutUint32(lenBuf[:4], uint32(len(e.sessionID)))
		buf = append(buf, lenBuf[:4]...)
		buf = append(buf, e.sessionID...)

		binary.LittleEndian.PutUint32(lenBuf[:4], uint32(len(e.record)))
		buf = append(buf, lenBuf[:4]...)
		buf = append(buf, e.record...)
	}

	return buf, nil
}

// ImportSnapshot loads a snapshot previously produced by ExportSnapshot,
// replacing the entire record set and the counter in one atomic batch:
// records present in the ledger but absent from the snapshot are removed.
// A checksum mismatch or malformed payload leaves the ledger untouched.
func (l *Ledger) ImportSnapshot(data []byte) error {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("create decoder:\n%w", err)
	}
	defer decoder.Close()

	payload, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("decompress snapshot:\n%w", err)
	}

	if len(payload) < checksumSize {
		return fmt.Errorf("snapshot too short: %d bytes", len(payload))
	}

	body := payload[:len(payload)-checksumSize]
	declared := payload[len(payload)-checksumSize:]

	checksum := blake3.Sum256(body)
	for i := 0; i < checksumSize; i++ {
		if checksum[i] != declared[i] {
			return fmt.Errorf("snapshot checksum mismatch")
		}
	}

	count, pairs, err := parseSnapshotBody(body)
	if err != nil {
		return fmt.Errorf("parse snapshot:\n%w", err)
	}

	pairs = append(pairs, storage.KeyValue{Key: keyCount, Value: encodeCount(count)})

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.db.ReplacePrefix(prefixAttestation, pairs); err != nil {
		return fmt.Errorf("apply snapshot:\n%w", err)
	}

	l.count = count

	logger.Info("snapshot imported", "records", len(pairs)-1, "count", count)

	return nil
}

// parseSnapshotBody decodes the snapshot header and entries.
func parseSnapshotBody(body []byte) (uint64, []storage.KeyValue, error) {
	if len(body) < 16 {
		return 0, nil, fmt.Errorf("header too short")
	}

	version := binary.LittleEndian.Uint32(body[0:4])
	if version != snapshotVersion {
		return 0, nil, fmt.Errorf("unsupported snapshot version: %d", version)
	}

	count := binary.LittleEndian.Uint64(body[4:12])
	numEntries := binary.LittleEndian.Uint32(body[12:16])

	pairs := make([]storage.KeyValue, 0, numEntries)
	offset := 16

	for i := uint32(0); i < numEntries; i++ {
		sid, next, err := readChunk(body, offset)
		if err != nil {
			return 0, nil, fmt.Errorf("entry %d session id: %w", i, err)
		}

		rec, next, err := readChunk(body, next)
		if err != nil {
			return 0, nil, fmt.Errorf("entry %d record: %w", i, err)
		}

		offset = next

		pairs = append(pairs, storage.KeyValue{
			Key:   makeKey(string(sid)),
			Value: rec,
		})
	}

	if offset != len(body) {
		return 0, nil, fmt.Errorf("%d trailing bytes after last entry", len(body)-offset)
	}

	return count, pairs, nil
}

// readChunk reads a u32 length-prefixed byte chunk at offset.
// Bounds are checked in int so a declared length near MaxUint32 cannot
// wrap the arithmetic.
func readChunk(data []byte, offset int) ([]byte, int, error) {
	if len(data)-offset < 4 {
		return nil, 0, fmt.Errorf("truncated length prefix")
	}

	n := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if len(data)-offset < n {
		return nil, 0, fmt.Errorf("truncated chunk")
	}

	chunk := make([]byte, n)
	copy(chunk, data[offset:offset+n])

	return chunk, offset + n, nil
}
