package core

// streaming.go normalizes raw upload bytes into clean UTF-8 without loading
// the file into memory.
//
// The Normalizer reads fixed-size chunks and runs each through a cleaner
// chain:
//
//   - DropInvalidUTF8: primary; removes invalid byte sequences
//   - TransformCleaner: secondary; golang.org/x/text rune transformers
//   - if every cleaner fails the chunk is written unmodified
//
// A UTF-8 BOM is stripped from the first chunk only. Multi-byte sequences
// split across a chunk boundary are carried into the next chunk so that
// valid characters are never dropped.
//
// Output goes to a TempSink on disk, which the caller must Cleanup.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the normalizer read size.
const DefaultChunkSize = 8192

// minChunkSize keeps the first chunk large enough to hold a whole BOM and
// any single UTF-8 sequence.
const minChunkSize = utf8.UTFMax

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ChunkCleaner converts one chunk into valid UTF-8.
type ChunkCleaner func(chunk []byte) ([]byte, error)

// NormalizeStats reports what the normalizer did.
type NormalizeStats struct {
	BytesIn     int64
	BytesOut    int64
	Chunks      int
	BOMStripped bool
	Fallbacks   int // chunks cleaned by a secondary cleaner
	Passthrough int // chunks written unmodified because every cleaner failed
}

// Normalizer streams bytes into valid UTF-8 in fixed-size chunks.
type Normalizer struct {
	ChunkSize int
	Cleaners  []ChunkCleaner
}

// NewNormalizer returns a Normalizer with the default cleaner chain.
func NewNormalizer(chunkSize int) *Normalizer {
	if chunkSize < minChunkSize {
		chunkSize = DefaultChunkSize
	}
	return &Normalizer{
		ChunkSize: chunkSize,
		Cleaners:  []ChunkCleaner{DropInvalidUTF8, TransformCleaner},
	}
}

// Normalize copies src to dst chunk by chunk, stripping a leading BOM and
// dropping invalid UTF-8. It only fails on read or write errors.
func (n *Normalizer) Normalize(dst io.Writer, src io.Reader) (NormalizeStats, error) {
	var stats NormalizeStats

	size := n.ChunkSize
	if size < minChunkSize {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	work := make([]byte, 0, size+utf8.UTFMax)
	var pending []byte
	first := true

	for {
		nr, rerr := io.ReadFull(src, buf)
		stats.BytesIn += int64(nr)
		atEOF := rerr == io.EOF || errors.Is(rerr, io.ErrUnexpectedEOF)
		if rerr != nil && !atEOF {
			return stats, fmt.Errorf("read chunk %d: %w", stats.Chunks+1, rerr)
		}

		work = append(work[:0], pending...)
		work = append(work, buf[:nr]...)
		pending = pending[:0]

		if len(work) > 0 {
			chunk := work
			if first {
				if bytes.HasPrefix(chunk, utf8BOM) {
					chunk = chunk[len(utf8BOM):]
					stats.BOMStripped = true
				}
				first = false
			}

			// Hold back an incomplete trailing sequence for the next chunk.
			if !atEOF {
				if k := incompleteTrailingBytes(chunk); k > 0 {
					pending = append(pending, chunk[len(chunk)-k:]...)
					chunk = chunk[:len(chunk)-k]
				}
			}

			out := n.clean(chunk, &stats)
			stats.Chunks++
			if len(out) > 0 {
				wn, werr := dst.Write(out)
				stats.BytesOut += int64(wn)
				if werr != nil {
					return stats, fmt.Errorf("write chunk %d: %w", stats.Chunks, werr)
				}
			}
		}

		if atEOF {
			return stats, nil
		}
	}
}

// clean runs the cleaner chain on one chunk.
func (n *Normalizer) clean(chunk []byte, stats *NormalizeStats) []byte {
	for i, c := range n.Cleaners {
		out, err := c(chunk)
		if err == nil {
			if i > 0 {
				stats.Fallbacks++
			}
			return out
		}
	}
	stats.Passthrough++
	return chunk
}

// DropInvalidUTF8 removes every byte that is not part of a valid UTF-8
// sequence. Valid U+FFFD characters in the input are kept.
func DropInvalidUTF8(data []byte) ([]byte, error) {
	if isAllASCII(data) || utf8.Valid(data) {
		return data, nil
	}

	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			data = data[1:]
			continue
		}
		out = append(out, data[:size]...)
		data = data[size:]
	}
	return out, nil
}

// TransformCleaner is the secondary cleaner. It replaces ill-formed
// sequences with U+FFFD and then removes every U+FFFD, so unlike
// DropInvalidUTF8 it also drops replacement characters that were
// already present in the input.
func TransformCleaner(data []byte) ([]byte, error) {
	t := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError })),
	)
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return nil, fmt.Errorf("transform chunk: %w", err)
	}
	return out, nil
}

// CleanString re-cleans a single field value: a leading BOM is stripped and
// invalid sequences are dropped. A BOM inside the value is kept.
func CleanString(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	if utf8.ValidString(s) {
		return s
	}
	out, err := DropInvalidUTF8([]byte(s))
	if err != nil {
		return s
	}
	return string(out)
}

// isAllASCII returns true if all bytes are ASCII (< 128).
// This is a fast path optimization since most CSV data is ASCII.
func isAllASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// incompleteTrailingBytes returns the number of bytes at the end of data
// that could be the start of an incomplete multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		// Anything other than a continuation byte ends the search.
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with byte b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

// TempSink is a temporary file holding normalized CSV data. It can be
// rewound for each pass over the data.
type TempSink struct {
	file    *os.File
	removed bool
}

// NewTempSink creates an empty temp file in dir (os.TempDir if empty).
func NewTempSink(dir string) (*TempSink, error) {
	f, err := os.CreateTemp(dir, "csv_*")
	if err != nil {
		return nil, fmt.Errorf("create temp sink: %w", err)
	}
	return &TempSink{file: f}, nil
}

// Write implements io.Writer.
func (s *TempSink) Write(p []byte) (int, error) {
	return s.file.Write(p)
}

// Rewind seeks to the start and returns the sink as a reader.
func (s *TempSink) Rewind() (io.Reader, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp sink: %w", err)
	}
	return s.file, nil
}

// Path returns the temp file location.
func (s *TempSink) Path() string {
	return s.file.Name()
}

// Cleanup closes and removes the temp file. Safe to call more than once.
func (s *TempSink) Cleanup() error {
	if s.removed {
		return nil
	}
	s.removed = true
	closeErr := s.file.Close()
	if err := os.Remove(s.file.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp sink: %w", err)
	}
	if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
		return fmt.Errorf("close temp sink: %w", closeErr)
	}
	return nil
}
