// Package zagnostic provides readers over byte streams in a manner
// that is agnostic to the compression format, or its absence thereof.
//
// For example, if r is a reader over gzip, zstd or lz4 compressed
// data, NewReader(r) returns an io.ReadCloser that reads the
// decompressed byte stream. If r reads non compressed data, or data
// compressed in a non-supported or non-recognized format, then
// NewReader(r) simply forwards the data in r.
package zagnostic
