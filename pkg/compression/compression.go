// Package compression wraps export artifacts in a streaming codec.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type Algorithm string

const (
	None   Algorithm = ""
	LZ4    Algorithm = "lz4"
	Snappy Algorithm = "snappy"
	Zstd   Algorithm = "zstd"
)

// ParseAlgorithm accepts the algorithm names plus "none".
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(s)); a {
	case None, LZ4, Snappy, Zstd:
		return a, nil
	case "none":
		return None, nil
	default:
		return None, fmt.Errorf("unsupported compression algorithm: %s", s)
	}
}

// Extension is the file suffix appended to compressed artifacts, including
// the leading dot. It is empty for None.
func (a Algorithm) Extension() string {
	switch a {
	case LZ4:
		return ".lz4"
	case Snappy:
		return ".sz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// NewWriter returns a writer compressing into w. Close flushes the codec but
// does not close w.
func NewWriter(algo Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopCloser{w}, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

// NewReader returns a reader decompressing r.
func NewReader(algo Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(r), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

// Compress compresses data in one call.
func Compress(algo Algorithm, data []byte) ([]byte, error) {
	if algo == None {
		return data, nil
	}
	var buf bytes.Buffer
	zw, err := NewWriter(algo, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(algo Algorithm, data []byte) ([]byte, error) {
	if algo == None {
		return data, nil
	}
	zr, err := NewReader(algo, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
