// Package hash computes stable identity hashes for audio files and their tracks.
//
// Identity hashes are the deduplication key for the library: the same file
// discovered twice (or moved between sources) produces the same hash, so the
// ingestion path can skip or reactivate it instead of creating a duplicate.
package hash

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// sampleSize is the number of bytes hashed from the head of a file.
// Hashing the full file would make large library scans I/O-bound on
// hashing alone; the head plus the size is stable and cheap.
const sampleSize = 1 << 20 // 1 MiB

// File computes the identity hash for the file at path.
// The hash covers the file size and the first sampleSize bytes of content,
// so renames and moves do not change identity but content edits do.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	h := xxhash.New()

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(info.Size()))
	h.Write(sizeBuf[:])

	if _, err := io.CopyN(h, f, sampleSize); err != nil && err != io.EOF {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Track derives a per-track identity hash from the parent file hash and the
// track's position within it. Tracks keep their identity as long as the
// containing file and their bounds are unchanged.
func Track(fileHash string, trackID int, startMs, endMs int64) string {
	h := xxhash.New()
	h.WriteString(fileHash)
	h.WriteString("|")
	h.WriteString(strconv.Itoa(trackID))
	h.WriteString("|")
	h.WriteString(strconv.FormatInt(startMs, 10))
	h.WriteString("|")
	h.WriteString(strconv.FormatInt(endMs, 10))
	return fmt.Sprintf("%016x", h.Sum64())
}
