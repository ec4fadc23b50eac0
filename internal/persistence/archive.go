package persistence

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/npc-favor/internal/engine"
)

// ArchiveHeader is the plain JSON line that precedes the record body so
// tools can identify an archive without decoding it.
type ArchiveHeader struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Minute  int64  `json:"minute"`
	Keys    int    `json:"keys"`
}

// ArchiveName is the conventional file name for a snapshot of a run.
func ArchiveName(dir, runID string, minute int64) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%08d.snap.zst", runID, minute))
}

// WriteArchive writes a zstd-compressed snapshot of rec to path and
// returns the compressed size.
func WriteArchive(path string, rec engine.StateRecord) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	minute, _ := rec.Minute()
	hdr := ArchiveHeader{Version: engine.StateRecordVersion, RunID: rec.RunID(), Minute: minute, Keys: len(rec)}
	hb, _ := json.Marshal(hdr)
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return 0, err
	}
	if err := gob.NewEncoder(bw).Encode(map[string]string(rec)); err != nil {
		enc.Close()
		return 0, fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	slog.Info("snapshot archived", "path", path, "keys", len(rec), "size", humanize.Bytes(uint64(st.Size())))
	return st.Size(), nil
}

// ReadArchive reads a snapshot written by WriteArchive.
func ReadArchive(path string) (engine.StateRecord, ArchiveHeader, error) {
	var hdr ArchiveHeader
	f, err := os.Open(path)
	if err != nil {
		return nil, hdr, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, hdr, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, hdr, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, hdr, fmt.Errorf("parse header: %w", err)
	}

	var m map[string]string
	if err := gob.NewDecoder(br).Decode(&m); err != nil {
		return nil, hdr, fmt.Errorf("gob decode: %w", err)
	}
	return engine.StateRecord(m), hdr, nil
}
