package zagnostic

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v3"
	"github.com/valyala/gozstd"
)

// Magic numbers of the supported compression formats, as they appear
// at the start of a stream.
const (
	gzipMagic = "\x1f\x8b"
	zstdMagic = "\x28\xb5\x2f\xfd"
	lz4Magic  = "\x04\x22\x4d\x18"
)

// NewReader returns an io.ReadCloser that reads from r, whether r is a
// reader over compressed data or not. It supports gzip, zstd and lz4.
//
// Detection is based on the leading magic number only; it's still
// possible to trick NewReader into thinking a reader contains
// compressed data while in fact it's not.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	var magic [4]byte
	n, err := io.ReadFull(r, magic[:])
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		// Too short for any magic number, forward as-is.
		return io.NopCloser(bytes.NewReader(magic[:n])), nil
	default:
		return nil, fmt.Errorf("zagnostic: can't read: %v", err)
	}

	// Replay the sniffed bytes in front of the rest of the stream.
	pr := io.MultiReader(bytes.NewReader(magic[:]), r)

	switch {
	case bytes.HasPrefix(magic[:], []byte(gzipMagic)):
		gr, err := gzip.NewReader(pr)
		if err != nil {
			return nil, fmt.Errorf("zagnostic (gzip): can't read: %v", err)
		}
		return gr, nil
	case bytes.Equal(magic[:], []byte(zstdMagic)):
		zr := gozstd.NewReader(pr)
		return makeReadCloser(zr, func() error { zr.Release(); return nil }), nil
	case bytes.Equal(magic[:], []byte(lz4Magic)):
		return io.NopCloser(lz4.NewReader(pr)), nil
	}

	return io.NopCloser(pr), nil
}

// makeReadCloser converts an io.Reader and a close function into a
// ReadCloser.
func makeReadCloser(r io.Reader, close func() error) io.ReadCloser {
	return &readCloser{Reader: r, close: close}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc *readCloser) Close() error {
	if err := rc.close(); err != nil {
		return fmt.Errorf("zagnostic: close: %v", err)
	}
	return nil
}
