package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the current backup file version.
const FormatVersion = 2

// Magic identifies gonogo backup headers.
const Magic = "gonogo-backup"

// MaxDecompressedSize is the maximum allowed size of decompressed backup data (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// ErrChecksum is returned when the payload does not match the header checksum.
var ErrChecksum = errors.New("checksum mismatch")

// Header is the plain-text JSON first line of a backup file. The rest of
// the file is the gzip-compressed Payload.
type Header struct {
	Magic        string            `json:"magic"`
	Version      int               `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	Checksum     string            `json:"checksum"`
	TrialCount   int               `json:"trial_count"`
	SessionCount int               `json:"session_count"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Encode writes the header line and compressed payload to w.
func Encode(w io.Writer, p *Payload, meta map[string]string) (*Header, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	h := &Header{
		Magic:        Magic,
		Version:      FormatVersion,
		CreatedAt:    p.CreatedAt,
		Checksum:     checksum(compressed.Bytes()),
		TrialCount:   len(p.Trials),
		SessionCount: len(p.Sessions),
		Metadata:     meta,
	}
	line, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}
	line = append(line, '\n')

	if _, err := w.Write(line); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing payload: %w", err)
	}
	return h, nil
}

// Decode reads a backup from r, verifies its checksum and decompresses it.
func Decode(r io.Reader) (*Header, *Payload, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return nil, nil, err
	}

	compressed, err := verify(br, h)
	if err != nil {
		return nil, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	raw, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(raw)) > MaxDecompressedSize {
		return nil, nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, nil, fmt.Errorf("parsing backup data: %w", err)
	}
	if len(p.Trials) != h.TrialCount || len(p.Sessions) != h.SessionCount {
		return nil, nil, fmt.Errorf("payload has %d trials and %d sessions, header says %d and %d",
			len(p.Trials), len(p.Sessions), h.TrialCount, h.SessionCount)
	}
	return h, &p, nil
}

// WriteFile encodes p to path with 0600 permissions, creating parent
// directories as needed.
func WriteFile(path string, p *Payload, meta map[string]string) (*Header, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	h, err := Encode(f, p, meta)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing file: %w", err)
	}
	return h, nil
}

// ReadFile decodes the backup at path.
func ReadFile(path string) (*Header, *Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ReadHeader reads only the header line without decompressing.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return readHeader(bufio.NewReader(f))
}

// Verify checks the payload checksum of the backup at path without
// decompressing it.
func Verify(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	if _, err := verify(br, h); err != nil {
		return nil, err
	}
	return h, nil
}

func readHeader(br *bufio.Reader) (*Header, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	var h Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &h); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("not a gonogo backup (magic %q)", h.Magic)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version %d (want %d)", h.Version, FormatVersion)
	}
	return &h, nil
}

// verify reads the remaining compressed bytes and checks them against h.
func verify(r io.Reader, h *Header) ([]byte, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	if got := checksum(compressed); got != h.Checksum {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksum, h.Checksum, got)
	}
	return compressed, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}
